package leaders

import "context"

// ListCountriesMCP is the MCP wrapper for ListCountries
func (c *Client) ListCountriesMCP(ctx context.Context, _ ListCountriesArgs) (ListCountriesResult, error) {
	countries, err := c.ListCountries(ctx)
	if err != nil {
		return ListCountriesResult{}, err
	}
	return ListCountriesResult{Countries: countries, Count: len(countries)}, nil
}
