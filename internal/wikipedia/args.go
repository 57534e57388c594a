package wikipedia

// GetIntroArgs contains parameters for fetching an article intro
type GetIntroArgs struct {
	URL string `json:"url" jsonschema:"required" jsonschema_description:"Full Wikipedia article URL, any language edition"`
}

// GetIntroResult is the extracted intro
type GetIntroResult struct {
	URL   string `json:"url"`
	Intro string `json:"intro"`
}
