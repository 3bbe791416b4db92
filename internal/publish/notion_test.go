package publish

import (
	"context"
	"errors"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/vehicle-catalog/internal/model"
	"github.com/sells-group/vehicle-catalog/pkg/notion"
)

type mockNotion struct {
	mock.Mock
}

func (m *mockNotion) QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	args := m.Called(ctx, dbID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notionapi.DatabaseQueryResponse), args.Error(1)
}

func (m *mockNotion) CreatePage(ctx context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notionapi.Page), args.Error(1)
}

func (m *mockNotion) UpdatePage(ctx context.Context, pageID string, req *notionapi.PageUpdateRequest) (*notionapi.Page, error) {
	args := m.Called(ctx, pageID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notionapi.Page), args.Error(1)
}

func sportage() model.Vehicle {
	return model.Vehicle{
		Brand:     "Kia",
		Title:     "Sportage",
		BodyType:  "SUV",
		SourceURL: "https://kia.se/sportage",
		Variants: []model.Variant{
			{Name: "GT-Line", Price: model.Int64(459900), PrivateLeasing: model.Int64(5495)},
			{Name: "Action", Price: model.Int64(389900)},
			{Name: "Special Edition"},
		},
	}
}

func keyFilter(key string) any {
	return mock.MatchedBy(func(req *notionapi.DatabaseQueryRequest) bool {
		pf, ok := req.Filter.(notionapi.PropertyFilter)
		return ok && pf.Property == PropKey && pf.RichText != nil && pf.RichText.Equals == key
	})
}

func TestPublish_CreatesWhenMissing(t *testing.T) {
	mc := new(mockNotion)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "db-vehicles", keyFilter("kia:sportage")).
		Return(&notionapi.DatabaseQueryResponse{}, nil).Once()
	mc.On("CreatePage", ctx, mock.MatchedBy(func(req *notionapi.PageCreateRequest) bool {
		from, ok := req.Properties[PropFromPrice].(notionapi.NumberProperty)
		return req.Parent.DatabaseID == "db-vehicles" &&
			notion.PlainText(req.Properties[PropName]) == "Kia Sportage" &&
			notion.PlainText(req.Properties[PropKey]) == "kia:sportage" &&
			ok && from.Number == 389900
	})).Return(&notionapi.Page{ID: "page-new"}, nil).Once()

	id, created, err := NewNotionPublisher(mc, "db-vehicles").Publish(ctx, sportage())
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "page-new", id)
	mc.AssertExpectations(t)
}

func TestPublish_UpdatesExisting(t *testing.T) {
	mc := new(mockNotion)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "db-vehicles", keyFilter("kia:sportage")).
		Return(&notionapi.DatabaseQueryResponse{Results: []notionapi.Page{{ID: "page-old"}}}, nil).Once()
	mc.On("UpdatePage", ctx, "page-old", mock.AnythingOfType("*notionapi.PageUpdateRequest")).
		Return(&notionapi.Page{ID: "page-old"}, nil).Once()

	id, created, err := NewNotionPublisher(mc, "db-vehicles").Publish(ctx, sportage())
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "page-old", id)
	mc.AssertExpectations(t)
	mc.AssertNotCalled(t, "CreatePage", mock.Anything, mock.Anything)
}

func TestPublish_LookupError(t *testing.T) {
	mc := new(mockNotion)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "db-vehicles", mock.Anything).Return(nil, errors.New("unauthorized")).Once()

	_, _, err := NewNotionPublisher(mc, "db-vehicles").Publish(ctx, sportage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish: lookup kia:sportage")
}

func TestPublishAll_CountsOutcomes(t *testing.T) {
	mc := new(mockNotion)
	ctx := context.Background()

	ex30 := model.Vehicle{Brand: "Volvo", Title: "EX30", Variants: []model.Variant{{Name: "Core"}}}
	niro := model.Vehicle{Brand: "Kia", Title: "Niro", Variants: []model.Variant{{Name: "Action"}}}

	mc.On("QueryDatabase", ctx, "db", keyFilter("kia:sportage")).
		Return(&notionapi.DatabaseQueryResponse{}, nil).Once()
	mc.On("QueryDatabase", ctx, "db", keyFilter("volvo:ex30")).
		Return(&notionapi.DatabaseQueryResponse{Results: []notionapi.Page{{ID: "p-ex30"}}}, nil).Once()
	mc.On("QueryDatabase", ctx, "db", keyFilter("kia:niro")).
		Return(&notionapi.DatabaseQueryResponse{}, nil).Once()
	mc.On("CreatePage", ctx, mock.MatchedBy(func(req *notionapi.PageCreateRequest) bool {
		return notion.PlainText(req.Properties[PropKey]) == "kia:sportage"
	})).Return(&notionapi.Page{ID: "p-sportage"}, nil).Once()
	mc.On("CreatePage", ctx, mock.MatchedBy(func(req *notionapi.PageCreateRequest) bool {
		return notion.PlainText(req.Properties[PropKey]) == "kia:niro"
	})).Return(nil, errors.New("validation_error")).Once()
	mc.On("UpdatePage", ctx, "p-ex30", mock.Anything).Return(&notionapi.Page{ID: "p-ex30"}, nil).Once()

	s, err := NewNotionPublisher(mc, "db").PublishAll(ctx, []model.Vehicle{sportage(), ex30, niro})
	require.NoError(t, err)
	assert.Equal(t, Summary{Created: 1, Updated: 1, Failed: 1}, s)
	mc.AssertExpectations(t)
}

func TestPublishAll_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewNotionPublisher(new(mockNotion), "db").PublishAll(ctx, []model.Vehicle{sportage()})
	require.Error(t, err)
}

func TestVehicleProperties_OmitsUnknowns(t *testing.T) {
	v := model.Vehicle{Title: "Ceed", Variants: []model.Variant{{Name: "Base"}}}
	props := vehicleProperties("kia:ceed", v)
	assert.NotContains(t, props, PropFromPrice)
	assert.NotContains(t, props, PropBrand)
	assert.NotContains(t, props, PropSource)
	assert.Equal(t, "Base", notion.PlainText(props[PropSummary]))
}

func TestVariantSummary(t *testing.T) {
	got := variantSummary(sportage().Variants)
	assert.Equal(t, "GT-Line: 459900 kr, privatleasing 5495 kr/mån\nAction: 389900 kr\nSpecial Edition", got)
}
