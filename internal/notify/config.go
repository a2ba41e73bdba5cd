// Package notify sends HTTP requests when pull requests were merged.
package notify

import (
	"bytes"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"strings"
	"text/template"

	"github.com/simplesurance/depmerger/internal/merge"
	"github.com/simplesurance/depmerger/internal/stringutils"
)

// Config is the configuration of a HTTP request that is sent after a pull
// request was merged.
// URL, Data and the header values are Go templates. They are executed with
// a struct that has the merge.Result as field "Result".
type Config struct {
	URL      string
	Method   string
	User     string
	Password string
	Headers  map[string]string
	Data     string
}

var templateFuncs = template.FuncMap{
	"queryescape": url.QueryEscape,
}

// Validate returns an error if c is incomplete. Method defaults to POST.
func (c *Config) Validate() error {
	if c.URL == "" {
		return errors.New("url must be set")
	}

	if c.Method == "" {
		c.Method = http.MethodPost
	}

	for _, text := range c.templates() {
		if _, err := template.New("notify").Funcs(templateFuncs).Parse(text); err != nil {
			return fmt.Errorf("parsing template %q failed: %w", text, err)
		}
	}

	return nil
}

func (c *Config) templates() []string {
	result := []string{c.URL, c.Data}
	for _, v := range c.Headers {
		result = append(result, v)
	}

	return result
}

func render(text string, result *merge.Result) (string, error) {
	templ, err := template.New("notify").Funcs(templateFuncs).Parse(text)
	if err != nil {
		return "", err
	}

	var out bytes.Buffer

	templateContext := struct{ Result *merge.Result }{
		Result: result,
	}

	err = templ.Execute(&out, &templateContext)
	if err != nil {
		return "", err
	}

	return out.String(), nil
}

// Render executes the templates of the configuration for result and returns
// a Runner that sends the request.
func (c *Config) Render(result *merge.Result) (*Runner, error) {
	var err error
	newConfig := *c

	newConfig.URL, err = render(c.URL, result)
	if err != nil {
		return nil, fmt.Errorf("templating url failed: %w", err)
	}

	if c.Data != "" {
		newConfig.Data, err = render(c.Data, result)
		if err != nil {
			return nil, fmt.Errorf("templating data failed: %w", err)
		}
	}

	newConfig.Headers = maps.Clone(c.Headers)
	for k, v := range newConfig.Headers {
		newConfig.Headers[k], err = render(v, result)
		if err != nil {
			return nil, fmt.Errorf("templating header %q failed: %w", k, err)
		}
	}

	return NewRunner(&newConfig), nil
}

func (c *Config) String() string {
	return fmt.Sprintf("httprequest: %s to %s", c.Method, c.URL)
}

// DetailedString returns a description of the configuration with
// credentials, data and header values masked.
func (c *Config) DetailedString() string {
	const maskedStr = "************"
	var result strings.Builder

	result.WriteString("http-request:\n")
	result.WriteString(fmt.Sprintf("  url: %s\n", c.URL))
	result.WriteString(fmt.Sprintf("  method: %s\n", c.Method))
	if c.User != "" {
		result.WriteString("  user: " + maskedStr + "\n")
	}

	if c.Password != "" {
		result.WriteString("  password: " + maskedStr + "\n")
	}

	if c.Data != "" {
		result.WriteString("  data: " + maskedStr + "\n")
	}

	if len(c.Headers) > 0 {
		result.WriteString("  headers:\n")
	}

	for k := range c.Headers {
		result.WriteString(fmt.Sprintf("    %s: %s\n", k, maskedStr))
	}

	return result.String()
}

type Configs []*Config

func (cc Configs) String() string {
	var result strings.Builder

	for i, c := range cc {
		result.WriteString(stringutils.IndentString(c.DetailedString(), "  "))
		if i < len(cc)-1 {
			result.WriteRune('\n')
		}
	}

	return result.String()
}
