package leaders

// ListCountriesArgs takes no parameters
type ListCountriesArgs struct{}

// ListCountriesResult lists the countries the API knows
type ListCountriesResult struct {
	Countries []CountryCode `json:"countries"`
	Count     int           `json:"count"`
}
