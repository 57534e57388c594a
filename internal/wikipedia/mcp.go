package wikipedia

import "context"

// GetIntroMCP is the MCP wrapper for Intro
func (c *Client) GetIntroMCP(ctx context.Context, args GetIntroArgs) (GetIntroResult, error) {
	intro, err := c.Intro(ctx, args.URL)
	if err != nil {
		return GetIntroResult{}, err
	}
	return GetIntroResult{URL: args.URL, Intro: intro}, nil
}
