package proxy

import "strings"

const (
	ScraperAPI  = "scraperapi"
	ScrapeDo    = "scrapedo"
	ScrapingAnt = "scrapingant"
	AbstractAPI = "abstractapi"
	ProxyScrape = "proxyscrape"
)

// Keys holds the credential for each provider, keyed by provider id.
type Keys map[string]string

var builtinTemplates = []Template{
	{
		ID:          ScraperAPI,
		Name:        "ScraperAPI",
		BaseURL:     "http://api.scraperapi.com",
		KeyParam:    "api_key",
		RenderParam: "render=true",
	},
	{
		ID:          ScrapeDo,
		Name:        "Scrape.do",
		BaseURL:     "https://api.scrape.do",
		KeyParam:    "token",
		RenderParam: "render=true",
	},
	{
		ID:          ScrapingAnt,
		Name:        "ScrapingAnt",
		BaseURL:     "https://api.scrapingant.com/v2/general",
		KeyParam:    "x-api-key",
		RenderParam: "browser=true",
	},
	{
		ID:       AbstractAPI,
		Name:     "AbstractAPI",
		BaseURL:  "https://scrape.abstractapi.com/v1/",
		KeyParam: "api_key",
	},
	{
		ID:       ProxyScrape,
		Name:     "ProxyScrape",
		BaseURL:  "https://api.proxyscrape.com/v3/accounts/freebies/scraperapi/request",
		KeyParam: "auth",
	},
}

// NewDefaultRegistry registers the five built-in providers. baseURLs
// overrides the endpoint of a provider by id.
func NewDefaultRegistry(keys Keys, baseURLs map[string]string) (*Registry, error) {
	registry := NewRegistry()
	for _, template := range builtinTemplates {
		template.Key = keys[template.ID]
		if override := strings.TrimSpace(baseURLs[template.ID]); override != "" {
			template.BaseURL = override
		}
		if err := registry.Register(NewProvider(template)); err != nil {
			return nil, err
		}
	}
	return registry, nil
}
