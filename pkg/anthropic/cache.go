package anthropic

// BuildCachedSystemBlocks returns the system prompt as a single block with
// a 1-hour cache breakpoint, so repeated extraction calls sharing the same
// instructions read it from the prompt cache.
func BuildCachedSystemBlocks(text string) []SystemBlock {
	return []SystemBlock{
		{
			Text: text,
			CacheControl: &CacheControl{
				TTL: "1h",
			},
		},
	}
}
