package changelog

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is an output encoding for a changelog
type Format string

const (
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "markdown"
)

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatJSON, FormatYAML, FormatMarkdown:
		return f, nil
	case "md":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("unknown changelog format %q (want json, yaml or markdown)", s)
}

// Write encodes the changelog in the given format
func (c *Changelog) Write(w io.Writer, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(c)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(c); err != nil {
			return err
		}
		return enc.Close()
	case FormatMarkdown:
		_, err := io.WriteString(w, c.Markdown())
		return err
	}
	return fmt.Errorf("unknown changelog format %q", format)
}

// Markdown renders the changelog for humans
func (c *Changelog) Markdown() string {
	var b strings.Builder
	b.WriteString("# Changelog\n\n")
	if len(c.Versions) == 0 {
		b.WriteString("No changes.\n")
		return b.String()
	}
	for _, v := range c.Versions {
		fmt.Fprintf(&b, "## %s\n\n", v.Value)
		for _, change := range v.Changes {
			fmt.Fprintf(&b, "### %s\n\n", change.Description)
			if change.SideEffects {
				b.WriteString("**Has side effects**\n\n")
			}
			for _, e := range change.Instructions {
				fmt.Fprintf(&b, "- %s\n", describe(e))
			}
			if len(change.Instructions) > 0 {
				b.WriteString("\n")
			}
		}
	}
	return b.String()
}

func describe(e Entry) string {
	models := strings.Join(e.Models, "`, `")
	switch e.Type {
	case EndpointAdded:
		return fmt.Sprintf("Endpoint `%s %s` was added", strings.Join(e.Methods, ","), e.Path)
	case EndpointRemoved:
		return fmt.Sprintf("Endpoint `%s %s` was removed", strings.Join(e.Methods, ","), e.Path)
	case EndpointChanged:
		return fmt.Sprintf("Endpoint `%s %s` changed %s", strings.Join(e.Methods, ","), e.Path, attributeNames(e.AttributeChanges))
	case SchemaFieldAdded:
		return fmt.Sprintf("Field `%s` was added to `%s`", e.Field, models)
	case SchemaFieldRemoved:
		return fmt.Sprintf("Field `%s` was removed from `%s`", e.Field, models)
	case FieldAttributesChanged:
		return fmt.Sprintf("Field `%s` of `%s` changed %s", e.Field, models, attributeNames(e.AttributeChanges))
	case FieldAttributesAdded:
		return fmt.Sprintf("Field `%s` of `%s` gained %s", e.Field, models, attributeNames(e.AttributeChanges))
	case SchemaChanged:
		return fmt.Sprintf("Schema `%s` was renamed from `%s`", models, e.ModelInfo.Name)
	case EnumMembersAdded:
		names := make([]string, len(e.Members))
		for i, m := range e.Members {
			names[i] = m.Name
		}
		return fmt.Sprintf("Enum `%s` gained members %s", e.Enum, strings.Join(names, ", "))
	case EnumMembersRemoved:
		return fmt.Sprintf("Enum `%s` changed members %s", e.Enum, attributeNames(e.MemberChanges))
	}
	return string(e.Type)
}

func attributeNames(changes []AttributeChange) string {
	names := make([]string, len(changes))
	for i, c := range changes {
		names[i] = c.Name
	}
	return strings.Join(names, ", ")
}
