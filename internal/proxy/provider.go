package proxy

import (
	"net/url"
	"strings"
)

// Provider turns a target URL into a request against a fetch-and-render
// proxy service. BuildURL is pure.
type Provider interface {
	ID() string
	Name() string
	SupportsRendering() bool
	BuildURL(targetURL string, render bool) string
}

// Template describes a provider whose request URL is
// BaseURL?KeyParam=Key&url=<target>[&RenderParam].
type Template struct {
	ID          string
	Name        string
	BaseURL     string
	KeyParam    string
	Key         string
	RenderParam string
}

type templateProvider struct {
	template Template
}

func NewProvider(template Template) Provider {
	template.ID = strings.TrimSpace(template.ID)
	template.Name = strings.TrimSpace(template.Name)
	template.BaseURL = strings.TrimSpace(template.BaseURL)
	template.Key = strings.TrimSpace(template.Key)
	if template.Name == "" {
		template.Name = template.ID
	}
	return &templateProvider{template: template}
}

func (p *templateProvider) ID() string {
	return p.template.ID
}

func (p *templateProvider) Name() string {
	return p.template.Name
}

func (p *templateProvider) SupportsRendering() bool {
	return p.template.RenderParam != ""
}

func (p *templateProvider) BuildURL(targetURL string, render bool) string {
	var builder strings.Builder
	builder.WriteString(p.template.BaseURL)
	if strings.Contains(p.template.BaseURL, "?") {
		builder.WriteByte('&')
	} else {
		builder.WriteByte('?')
	}

	if p.template.KeyParam != "" {
		builder.WriteString(p.template.KeyParam)
		builder.WriteByte('=')
		builder.WriteString(url.QueryEscape(p.template.Key))
		builder.WriteByte('&')
	}

	builder.WriteString("url=")
	builder.WriteString(encodeTarget(targetURL))

	if render && p.template.RenderParam != "" {
		builder.WriteByte('&')
		builder.WriteString(p.template.RenderParam)
	}

	return builder.String()
}

// encodeTarget percent-encodes like encodeURIComponent, so spaces become
// %20 rather than '+'.
func encodeTarget(targetURL string) string {
	return strings.ReplaceAll(url.QueryEscape(strings.TrimSpace(targetURL)), "+", "%20")
}

func (p *templateProvider) Configured() bool {
	return p.template.KeyParam == "" || p.template.Key != ""
}
