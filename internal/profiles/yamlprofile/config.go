package yamlprofile

import (
	"fmt"
	"strings"
)

type Config struct {
	Key            string `yaml:"key"`
	Name           string `yaml:"name"`
	Enabled        *bool  `yaml:"enabled"`
	BaseURL        string `yaml:"base_url"`
	CatalogPath    string `yaml:"catalog_path"`
	NeedsRendering bool   `yaml:"needs_rendering"`
	Catalog        struct {
		Item       string   `yaml:"item"`
		Title      string   `yaml:"title"`
		TitleAttr  string   `yaml:"title_attr"`
		Cover      string   `yaml:"cover"`
		CoverAttrs []string `yaml:"cover_attrs"`
	} `yaml:"catalog"`
	Chapters struct {
		Item       string `yaml:"item"`
		Label      string `yaml:"label"`
		NumberAttr string `yaml:"number_attr"`
		Date       string `yaml:"date"`
	} `yaml:"chapters"`
	Pages struct {
		Image          string `yaml:"image"`
		NeedsRendering *bool  `yaml:"needs_rendering"`
	} `yaml:"pages"`
}

func (c *Config) normalizeAndValidate() error {
	c.Key = strings.ToLower(strings.TrimSpace(c.Key))
	c.Name = strings.TrimSpace(c.Name)
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")

	if c.Key == "" {
		return fmt.Errorf("key is required")
	}
	if c.Name == "" {
		c.Name = c.Key
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	if strings.TrimSpace(c.Catalog.Item) == "" {
		return fmt.Errorf("catalog.item is required")
	}
	if strings.TrimSpace(c.Chapters.Item) == "" {
		return fmt.Errorf("chapters.item is required")
	}
	if strings.TrimSpace(c.Pages.Image) == "" {
		return fmt.Errorf("pages.image is required")
	}

	if strings.TrimSpace(c.CatalogPath) == "" {
		c.CatalogPath = "/"
	}
	if !strings.HasPrefix(c.CatalogPath, "/") {
		c.CatalogPath = "/" + c.CatalogPath
	}
	if c.Catalog.Title == "" && c.Catalog.TitleAttr == "" {
		c.Catalog.TitleAttr = "title"
	}
	if c.Catalog.Cover == "" {
		c.Catalog.Cover = "img"
	}
	if len(c.Catalog.CoverAttrs) == 0 {
		c.Catalog.CoverAttrs = []string{"src", "data-src", "data-lazy-src"}
	}
	if c.Chapters.Label == "" && c.Chapters.NumberAttr == "" {
		return fmt.Errorf("chapters.label or chapters.number_attr is required")
	}

	return nil
}

func (c *Config) isEnabled() bool {
	if c.Enabled == nil {
		return true
	}
	return *c.Enabled
}
