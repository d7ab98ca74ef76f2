package proxy_test

import (
	"testing"

	"github.com/gustavoatec2-lang/havencomics/internal/proxy"
)

func TestDefaultRegistryBuildsProviderURLs(t *testing.T) {
	registry, err := proxy.NewDefaultRegistry(proxy.Keys{
		proxy.ScraperAPI:  "k1",
		proxy.ScrapeDo:    "k2",
		proxy.ScrapingAnt: "k3",
		proxy.AbstractAPI: "k4",
		proxy.ProxyScrape: "k5",
	}, nil)
	if err != nil {
		t.Fatalf("new default registry: %v", err)
	}

	target := "https://plumacomics.cloud/manga/solo leveling/"
	encoded := "https%3A%2F%2Fplumacomics.cloud%2Fmanga%2Fsolo%20leveling%2F"

	cases := []struct {
		id     string
		render bool
		want   string
	}{
		{proxy.ScraperAPI, true, "http://api.scraperapi.com?api_key=k1&url=" + encoded + "&render=true"},
		{proxy.ScraperAPI, false, "http://api.scraperapi.com?api_key=k1&url=" + encoded},
		{proxy.ScrapeDo, true, "https://api.scrape.do?token=k2&url=" + encoded + "&render=true"},
		{proxy.ScrapingAnt, true, "https://api.scrapingant.com/v2/general?x-api-key=k3&url=" + encoded + "&browser=true"},
		{proxy.AbstractAPI, true, "https://scrape.abstractapi.com/v1/?api_key=k4&url=" + encoded},
		{proxy.ProxyScrape, true, "https://api.proxyscrape.com/v3/accounts/freebies/scraperapi/request?auth=k5&url=" + encoded},
	}

	for _, tc := range cases {
		provider, ok := registry.Get(tc.id)
		if !ok {
			t.Fatalf("expected provider %s", tc.id)
		}
		got := provider.BuildURL(target, tc.render)
		if got != tc.want {
			t.Fatalf("%s render=%v: expected %s, got %s", tc.id, tc.render, tc.want, got)
		}
	}
}

func TestBuildURLIsDeterministic(t *testing.T) {
	provider := proxy.NewProvider(proxy.Template{ID: "p", BaseURL: "http://proxy.local/fetch?mode=raw", KeyParam: "key", Key: "a b"})

	first := provider.BuildURL("https://example.com/?q=1&x=2", false)
	second := provider.BuildURL("https://example.com/?q=1&x=2", false)
	if first != second {
		t.Fatalf("expected identical urls, got %s and %s", first, second)
	}
	want := "http://proxy.local/fetch?mode=raw&key=a+b&url=https%3A%2F%2Fexample.com%2F%3Fq%3D1%26x%3D2"
	if first != want {
		t.Fatalf("expected %s, got %s", want, first)
	}
	if provider.SupportsRendering() {
		t.Fatalf("expected provider without render param to not support rendering")
	}
}

func TestRegistryListAndDefault(t *testing.T) {
	registry, err := proxy.NewDefaultRegistry(proxy.Keys{proxy.ScrapeDo: "token"}, map[string]string{proxy.ScrapeDo: "http://127.0.0.1:9999/"})
	if err != nil {
		t.Fatalf("new default registry: %v", err)
	}

	list := registry.List()
	if len(list) != 5 {
		t.Fatalf("expected 5 providers, got %d", len(list))
	}
	for i := 1; i < len(list); i++ {
		if list[i-1].ID > list[i].ID {
			t.Fatalf("expected sorted ids, got %s before %s", list[i-1].ID, list[i].ID)
		}
	}
	for _, item := range list {
		if item.ID == proxy.ScrapeDo && !item.Configured {
			t.Fatalf("expected scrapedo configured")
		}
		if item.ID == proxy.ScraperAPI && item.Configured {
			t.Fatalf("expected scraperapi without key to be unconfigured")
		}
	}

	provider, _ := registry.Get(proxy.ScrapeDo)
	if got := provider.BuildURL("https://a.b/", false); got != "http://127.0.0.1:9999/?token=token&url=https%3A%2F%2Fa.b%2F" {
		t.Fatalf("unexpected overridden url %s", got)
	}

	fallback, ok := registry.Default()
	if !ok || fallback.ID() != proxy.ScraperAPI {
		t.Fatalf("expected first registered provider as default")
	}
	if err := registry.SetDefault(proxy.ScrapeDo); err != nil {
		t.Fatalf("set default: %v", err)
	}
	if fallback, _ := registry.Default(); fallback.ID() != proxy.ScrapeDo {
		t.Fatalf("expected scrapedo default, got %s", fallback.ID())
	}
	if err := registry.SetDefault("missing"); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
	if err := registry.Register(proxy.NewProvider(proxy.Template{ID: proxy.ScrapeDo})); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}
