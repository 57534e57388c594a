package tools

// AllTools contains all tool specifications for the country leaders server.
// Tool descriptions follow a structured format for LLM tool selection:
// - USE WHEN: Natural language triggers
// - NOT FOR: Disambiguation from similar tools
// - PARAMETERS: Key arguments with defaults
// - RETURNS: What the tool returns
var AllTools = []ToolSpec{
	{
		Name:     "leaders_list_countries",
		Method:   "ListCountries",
		Title:    "List Countries",
		Category: "read",
		Upstream: "leaders",
		Description: `List the country codes the leaders API has data for.

USE WHEN: User asks "which countries are available", "what country codes can I use", or before fetching leaders for a country you are unsure about.

NOT FOR: Getting the leaders themselves (use leaders_get_leaders).

PARAMETERS: none

RETURNS: Country codes in API order and their count.`,
		ReadOnly:   true,
		Idempotent: true,
		OpenWorld:  true,
	},
	{
		Name:     "leaders_get_leaders",
		Method:   "GetLeaders",
		Title:    "Get Country Leaders",
		Category: "read",
		Upstream: "leaders",
		Description: `Get the political leaders of one country, optionally with the intro paragraph of each leader's Wikipedia article.

USE WHEN: User asks "who led Belgium", "list the presidents of France", "leaders of country X".

NOT FOR: All countries at once (use leaders_scrape_all). A single arbitrary Wikipedia page (use wikipedia_get_intro).

PARAMETERS:
- country: Country code, e.g. "be", "fr", "us" (required)
- enrich: Fetch Wikipedia intros (default true)

RETURNS: Leaders in API order with id, names, dates, Wikipedia URL and intro (null when the page could not be read), plus any per-leader failures.`,
		ReadOnly:     true,
		Idempotent:   true,
		OpenWorld:    true,
		ObjectOutput: true,
	},
	{
		Name:     "wikipedia_get_intro",
		Method:   "GetIntro",
		Title:    "Get Wikipedia Intro",
		Category: "enrich",
		Upstream: "wikipedia",
		Description: `Extract the first introductory paragraph of a Wikipedia article in any language edition, with citation markers and pronunciation fragments removed.

USE WHEN: User gives a Wikipedia URL and asks "summarize this person", "what is the first paragraph of this article".

NOT FOR: Looking up leaders by country (use leaders_get_leaders).

PARAMETERS:
- url: Full article URL, e.g. https://fr.wikipedia.org/wiki/Alexander_De_Croo (required)

RETURNS: The URL and the cleaned intro text.`,
		ReadOnly:   true,
		Idempotent: true,
		OpenWorld:  true,
	},
	{
		Name:     "leaders_scrape_all",
		Method:   "ScrapeAll",
		Title:    "Scrape All Leaders",
		Category: "scrape",
		Upstream: "leaders",
		Description: `Run a full scrape: every country's leaders, each enriched with a Wikipedia intro.

USE WHEN: User asks for "all leaders", "the full dataset", or a set of several countries at once.

NOT FOR: One country (use leaders_get_leaders, it is much faster).

PARAMETERS:
- countries: Restrict to these country codes (optional, default all)
- enrich: Fetch Wikipedia intros (default true)

RETURNS: Mapping of country code to leaders, totals, and the list of records that failed.

NOTE: Sequential and polite to Wikipedia, so a full run takes minutes.`,
		ReadOnly:     true,
		Idempotent:   true,
		OpenWorld:    true,
		ObjectOutput: true,
	},
	{
		Name:     "runs_load",
		Method:   "LoadRun",
		Title:    "Load Stored Run",
		Category: "history",
		Upstream: "store",
		Description: `Load a previously recorded scrape run from the local database: its summary, the country to leaders mapping and its failures.

USE WHEN: User asks "what did the last scrape find", "show run 3", or wants results without scraping again.

NOT FOR: Fresh data from the API (use leaders_get_leaders or leaders_scrape_all).

PARAMETERS:
- run_id: Run id (optional, default the most recent run)

RETURNS: Run summary (id, start and finish time, totals), leaders per country as stored, and the failures of that run.`,
		ReadOnly:     true,
		Idempotent:   true,
		ObjectOutput: true,
	},
	{
		Name:     "runs_get_failures",
		Method:   "RunFailures",
		Title:    "Get Run Failures",
		Category: "history",
		Upstream: "store",
		Description: `List the records that failed in a recorded scrape run.

USE WHEN: User asks "which leaders had no intro", "what went wrong in the last run", "which countries failed".

NOT FOR: The successful records (use runs_load).

PARAMETERS:
- run_id: Run id (optional, default the most recent run)
- stage: Only this stage: countries, leaders, enrichment or validation (optional)

RETURNS: Failures with stage, country, leader id, URL and error message.`,
		ReadOnly:   true,
		Idempotent: true,
	},
	{
		Name:     "runs_find_leader",
		Method:   "FindLeader",
		Title:    "Find Leader In Stored Runs",
		Category: "history",
		Upstream: "store",
		Description: `Find every stored record of one leader across recorded runs, newest first.

USE WHEN: User asks "how did this leader's record change", "what did we store for Q7747".

NOT FOR: Looking up a leader on the live API (use leaders_get_leaders).

PARAMETERS:
- leader_id: Leader id as sent by the API (required)

RETURNS: The stored leader records and their count.`,
		ReadOnly:     true,
		Idempotent:   true,
		ObjectOutput: true,
	},
}
