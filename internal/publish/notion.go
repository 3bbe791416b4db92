// Package publish pushes reconciled vehicles to the content database.
package publish

import (
	"context"
	"fmt"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/vehicle-catalog/internal/model"
	"github.com/sells-group/vehicle-catalog/internal/reconcile"
	"github.com/sells-group/vehicle-catalog/pkg/notion"
)

// Property names in the vehicle database.
const (
	PropName      = "Name"
	PropKey       = "Key"
	PropBrand     = "Brand"
	PropBodyType  = "Body type"
	PropFromPrice = "From price"
	PropVariants  = "Variants"
	PropSummary   = "Variant list"
	PropSource    = "Source"
)

// Summary counts the outcome of PublishAll.
type Summary struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}

// NotionPublisher upserts vehicles into a Notion database keyed by the
// vehicle key stored in a rich-text property.
type NotionPublisher struct {
	client notion.Client
	dbID   string
}

// NewNotionPublisher creates a publisher for the given database.
func NewNotionPublisher(client notion.Client, dbID string) *NotionPublisher {
	return &NotionPublisher{client: client, dbID: dbID}
}

// Publish finds the page whose Key matches v, updates it or creates one.
// It returns the page id and whether the page was created.
func (p *NotionPublisher) Publish(ctx context.Context, v model.Vehicle) (string, bool, error) {
	key := reconcile.VehicleKey(v)
	props := vehicleProperties(key, v)

	page, err := notion.FindByRichText(ctx, p.client, p.dbID, PropKey, key)
	if err != nil {
		return "", false, eris.Wrapf(err, "publish: lookup %s", key)
	}

	if page != nil {
		updated, err := p.client.UpdatePage(ctx, string(page.ID), &notionapi.PageUpdateRequest{Properties: props})
		if err != nil {
			return "", false, eris.Wrapf(err, "publish: update %s", key)
		}
		return string(updated.ID), false, nil
	}

	created, err := p.client.CreatePage(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(p.dbID),
		},
		Properties: props,
	})
	if err != nil {
		return "", false, eris.Wrapf(err, "publish: create %s", key)
	}
	return string(created.ID), true, nil
}

// PublishAll publishes every vehicle. Per-vehicle failures are logged and
// counted; an error is returned only when ctx is done.
func (p *NotionPublisher) PublishAll(ctx context.Context, vehicles []model.Vehicle) (Summary, error) {
	var s Summary
	for _, v := range vehicles {
		if err := ctx.Err(); err != nil {
			return s, eris.Wrap(err, "publish: cancelled")
		}
		id, created, err := p.Publish(ctx, v)
		if err != nil {
			s.Failed++
			zap.L().Warn("publish: vehicle failed",
				zap.String("brand", v.Brand),
				zap.String("title", v.Title),
				zap.Error(err),
			)
			continue
		}
		if created {
			s.Created++
		} else {
			s.Updated++
		}
		zap.L().Debug("publish: vehicle published",
			zap.String("page_id", id),
			zap.String("title", v.Title),
			zap.Bool("created", created),
		)
	}
	return s, nil
}

func vehicleProperties(key string, v model.Vehicle) notionapi.Properties {
	props := notionapi.Properties{
		PropName:     notion.Title(strings.TrimSpace(v.Brand + " " + v.Title)),
		PropKey:      notion.RichText(key),
		PropVariants: notion.Number(float64(len(v.Variants))),
		PropSummary:  notion.RichText(variantSummary(v.Variants)),
	}
	if v.Brand != "" {
		props[PropBrand] = notion.Select(v.Brand)
	}
	if v.BodyType != "" {
		props[PropBodyType] = notion.Select(v.BodyType)
	}
	if from, ok := fromPrice(v.Variants); ok {
		props[PropFromPrice] = notion.Number(float64(from))
	}
	if v.SourceURL != "" {
		props[PropSource] = notion.URL(v.SourceURL)
	}
	return props
}

// fromPrice is the lowest known cash price across variants.
func fromPrice(vs []model.Variant) (int64, bool) {
	var lowest int64
	found := false
	for _, vr := range vs {
		if vr.Price == nil {
			continue
		}
		if !found || *vr.Price < lowest {
			lowest = *vr.Price
			found = true
		}
	}
	return lowest, found
}

func variantSummary(vs []model.Variant) string {
	lines := make([]string, 0, len(vs))
	for _, vr := range vs {
		line := vr.Name
		if vr.Price != nil {
			line += fmt.Sprintf(": %d kr", *vr.Price)
		}
		if vr.PrivateLeasing != nil {
			line += fmt.Sprintf(", privatleasing %d kr/mån", *vr.PrivateLeasing)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
