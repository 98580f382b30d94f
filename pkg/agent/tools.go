package agent

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"

	"github.com/ormasoftchile/webrun/pkg/driver"
)

// doneTool is the tool the model calls to finish and hand back its report.
const doneTool = "done"

func browserTools() []openai.ChatCompletionToolUnionParam {
	return []openai.ChatCompletionToolUnionParam{
		openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        "click",
			Description: openai.String("Click the element with the given visible text or label."),
			Parameters: openai.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"text": map[string]any{
						"type":        "string",
						"description": "Visible text, label or placeholder of the element.",
					},
					"container": map[string]any{
						"type":        "string",
						"description": "Optional heading of the section containing the element.",
					},
				},
				"required": []string{"text"},
			},
		}),
		openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        "type",
			Description: openai.String("Type a value into the field with the given label or placeholder."),
			Parameters: openai.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"text":  map[string]any{"type": "string", "description": "Label or placeholder of the field."},
					"value": map[string]any{"type": "string", "description": "The text to type."},
				},
				"required": []string{"text", "value"},
			},
		}),
		openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        "select",
			Description: openai.String("Choose an option in the dropdown with the given label."),
			Parameters: openai.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"text":   map[string]any{"type": "string", "description": "Label of the dropdown."},
					"option": map[string]any{"type": "string", "description": "Visible text of the option to choose."},
				},
				"required": []string{"text", "option"},
			},
		}),
		openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        "press",
			Description: openai.String("Press a key on the element with the given label."),
			Parameters: openai.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"text": map[string]any{"type": "string", "description": "Label of the element to receive the key."},
					"key": map[string]any{
						"type": "string",
						"enum": []string{"Enter", "Escape", "Tab", "Backspace", "ArrowDown", "ArrowUp"},
					},
				},
				"required": []string{"text", "key"},
			},
		}),
		openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        "navigate",
			Description: openai.String("Load a URL. Use only when no on-page element leads there."),
			Parameters: openai.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"url": map[string]any{"type": "string", "description": "Absolute URL."},
				},
				"required": []string{"url"},
			},
		}),
		openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        doneTool,
			Description: openai.String("Finish the task and hand back the final report."),
			Parameters: openai.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"report": map[string]any{"type": "string", "description": "What was done and what was found."},
				},
				"required": []string{"report"},
			},
		}),
	}
}

// runTool executes one tool call against the driver. Lookup misses come
// back as result text, not errors, so the model can correct course.
func runTool(ctx context.Context, drv driver.Driver, name string, args map[string]any) (string, error) {
	str := func(key string) string {
		v, _ := args[key].(string)
		return v
	}

	locate := func() (driver.ElementRef, string) {
		ref, err := drv.LocateBySemanticText(ctx, str("text"), str("container"))
		if err != nil {
			return nil, fmt.Sprintf("could not locate %q: %v", str("text"), err)
		}
		return ref, ""
	}

	switch name {
	case "click":
		ref, miss := locate()
		if miss != "" {
			return miss, nil
		}
		if err := drv.PerformAction(ctx, ref, driver.ActionClick, ""); err != nil {
			return "", err
		}
		return "clicked " + ref.Describe(), nil

	case "type":
		ref, miss := locate()
		if miss != "" {
			return miss, nil
		}
		if err := drv.PerformAction(ctx, ref, driver.ActionInput, str("value")); err != nil {
			return "", err
		}
		return "typed into " + ref.Describe(), nil

	case "select":
		ref, miss := locate()
		if miss != "" {
			return miss, nil
		}
		if err := drv.PerformAction(ctx, ref, driver.ActionSelect, str("option")); err != nil {
			return "", err
		}
		return fmt.Sprintf("selected %q in %s", str("option"), ref.Describe()), nil

	case "press":
		ref, miss := locate()
		if miss != "" {
			return miss, nil
		}
		if err := drv.PerformAction(ctx, ref, driver.ActionKeypress, str("key")); err != nil {
			return "", err
		}
		return fmt.Sprintf("pressed %s on %s", str("key"), ref.Describe()), nil

	case "navigate":
		if err := drv.Navigate(ctx, str("url")); err != nil {
			return "", err
		}
		return "opened " + str("url"), nil
	}
	return "", fmt.Errorf("unknown tool %q", name)
}
