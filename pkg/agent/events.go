package agent

import (
	"encoding/json"
	"fmt"

	"github.com/llmwire/llmwire/pkg/llm"
)

// AgentResponse is the final outcome of a run: the items produced this
// run and the last assistant content.
type AgentResponse struct {
	Output  []AgentItem `json:"output"`
	Content []llm.Part  `json:"content"`
}

// AgentStreamEvent is one entry in a run's event stream. Exactly one
// variant pointer is set; the wire discriminator is "type" with values
// partial, item and response.
type AgentStreamEvent struct {
	Partial  *llm.PartialModelResponse `json:"-"`
	Item     *AgentItem                `json:"-"`
	Response *AgentResponse            `json:"-"`
}

func (e AgentStreamEvent) MarshalJSON() ([]byte, error) {
	switch {
	case e.Partial != nil:
		return json.Marshal(struct {
			Type    string                    `json:"type"`
			Partial *llm.PartialModelResponse `json:"partial"`
		}{"partial", e.Partial})
	case e.Item != nil:
		return json.Marshal(struct {
			Type string     `json:"type"`
			Item *AgentItem `json:"item"`
		}{"item", e.Item})
	case e.Response != nil:
		return json.Marshal(struct {
			Type     string         `json:"type"`
			Response *AgentResponse `json:"response"`
		}{"response", e.Response})
	}
	return nil, fmt.Errorf("agent stream event has no variant set")
}

func (e *AgentStreamEvent) UnmarshalJSON(data []byte) error {
	var tag struct {
		Type     string                    `json:"type"`
		Partial  *llm.PartialModelResponse `json:"partial"`
		Item     *AgentItem                `json:"item"`
		Response *AgentResponse            `json:"response"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return err
	}

	switch tag.Type {
	case "partial":
		e.Partial = tag.Partial
	case "item":
		e.Item = tag.Item
	case "response":
		e.Response = tag.Response
	default:
		return fmt.Errorf("unknown agent stream event type %q", tag.Type)
	}
	return nil
}
