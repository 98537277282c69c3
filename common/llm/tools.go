package llm

import (
	"fmt"
	"slices"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/invopop/jsonschema"
)

// Feature opt-ins sent via the anthropic-beta header.
const (
	BetaWebFetch  anthropic.AnthropicBeta = "web-fetch-2025-09-10"
	BetaMCPClient                         = anthropic.AnthropicBetaMCPClient2025_04_04
)

func buildTools(specs []ToolSpec) ([]anthropic.BetaToolUnionParam, error) {
	tools := make([]anthropic.BetaToolUnionParam, 0, len(specs))
	for _, spec := range specs {
		switch spec.Type {
		case ToolTypeCustom, "":
			if spec.Name == "" {
				return nil, fmt.Errorf("custom tool requires a name")
			}
			tool := &anthropic.BetaToolParam{
				Name:        spec.Name,
				InputSchema: inputSchema(spec.InputSchema),
			}
			if spec.Description != "" {
				tool.Description = anthropic.String(spec.Description)
			}
			tools = append(tools, anthropic.BetaToolUnionParam{OfTool: tool})

		case ToolTypeWebFetch:
			tool := &anthropic.BetaWebFetchTool20250910Param{}
			if spec.MaxUses > 0 {
				tool.MaxUses = anthropic.Int(int64(spec.MaxUses))
			}
			tools = append(tools, anthropic.BetaToolUnionParam{OfWebFetchTool20250910: tool})

		case ToolTypeWebSearch:
			tool := &anthropic.BetaWebSearchTool20250305Param{}
			if spec.MaxUses > 0 {
				tool.MaxUses = anthropic.Int(int64(spec.MaxUses))
			}
			tools = append(tools, anthropic.BetaToolUnionParam{OfWebSearchTool20250305: tool})

		default:
			return nil, fmt.Errorf("unsupported tool type %q for tool %q", spec.Type, spec.Name)
		}
	}
	return tools, nil
}

// inputSchema maps a JSON Schema object onto the SDK param.
// Keys other than properties/required travel as extra fields.
func inputSchema(schema map[string]any) anthropic.BetaToolInputSchemaParam {
	param := anthropic.BetaToolInputSchemaParam{}
	if schema == nil {
		return param
	}

	extra := make(map[string]any)
	for k, v := range schema {
		switch k {
		case "type", "$schema", "$id":
		case "properties":
			param.Properties = v
		case "required":
			param.Required = toStrings(v)
		default:
			extra[k] = v
		}
	}
	if len(extra) > 0 {
		param.ExtraFields = extra
	}
	return param
}

func toStrings(v any) []string {
	switch vals := v.(type) {
	case []string:
		return vals
	case []any:
		out := make([]string, 0, len(vals))
		for _, item := range vals {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func buildMCPServers(servers []MCPServer) []anthropic.BetaRequestMCPServerURLDefinitionParam {
	if len(servers) == 0 {
		return nil
	}
	out := make([]anthropic.BetaRequestMCPServerURLDefinitionParam, 0, len(servers))
	for _, s := range servers {
		def := anthropic.BetaRequestMCPServerURLDefinitionParam{
			Name: s.Name,
			URL:  s.URL,
		}
		if s.AuthorizationToken != "" {
			def.AuthorizationToken = anthropic.String(s.AuthorizationToken)
		}
		if len(s.AllowedTools) > 0 {
			def.ToolConfiguration = anthropic.BetaRequestMCPServerToolConfigurationParam{
				Enabled:      anthropic.Bool(true),
				AllowedTools: s.AllowedTools,
			}
		}
		out = append(out, def)
	}
	return out
}

// betasFor derives the opt-in feature set from the tools and servers in a request.
func betasFor(tools []anthropic.BetaToolUnionParam, servers []anthropic.BetaRequestMCPServerURLDefinitionParam) []anthropic.AnthropicBeta {
	var betas []anthropic.AnthropicBeta
	for _, t := range tools {
		if t.OfWebFetchTool20250910 != nil && !slices.Contains(betas, BetaWebFetch) {
			betas = append(betas, BetaWebFetch)
		}
	}
	if len(servers) > 0 {
		betas = append(betas, BetaMCPClient)
	}
	return betas
}

// SchemaFor reflects a JSON Schema for a tool input struct.
func SchemaFor[T any]() map[string]any {
	var v T
	return GenerateSchemaFrom(v)
}

// GenerateSchemaFrom reflects a JSON Schema object from an instance value.
func GenerateSchemaFrom(v any) map[string]any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schema := reflector.Reflect(v)

	out := map[string]any{"type": "object"}
	if schema.Properties != nil && schema.Properties.Len() > 0 {
		props := make(map[string]any, schema.Properties.Len())
		for pair := schema.Properties.Oldest(); pair != nil; pair = pair.Next() {
			props[pair.Key] = pair.Value
		}
		out["properties"] = props
	}
	if len(schema.Required) > 0 {
		out["required"] = schema.Required
	}
	return out
}
