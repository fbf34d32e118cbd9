package pipeline

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

const plannerSystemTemplate = `You classify dashboard requests. Respond with a single JSON object and nothing else:
{"intent": "<short label for what the user wants>",
 "approach": "<one sentence on how to lay out the result>",
 "sources": ["<zero or more of: music, stocks, sports, fitness, gaming>"]}

User request: %s`

// buildPlanningPrompt asks the model to classify a free-text query into a
// structured intent with suggested data sources.
func buildPlanningPrompt(query string) string {
	return fmt.Sprintf(plannerSystemTemplate, query)
}

const agentSystemPrompt = "You are a data fetching agent. Use the available functions to retrieve user data. Call multiple functions if needed."

// buildAgentPrompt names the planner's intent and suggested sources so the
// model picks matching tools.
func buildAgentPrompt(query, intent string, sources []string) string {
	return fmt.Sprintf(`Based on this user query, fetch the relevant data.

Query: %s
Intent: %s
Suggested sources: %s

Call the appropriate functions to get the data needed.`, query, intent, strings.Join(sources, ", "))
}

const interactSystemPrompt = "You are a data fetching agent. Fetch detailed data for a drill-down view based on the clicked item. Use available functions to get relevant details."

// buildInteractAgentPrompt describes the clicked item for the drill-down fetch.
func buildInteractAgentPrompt(clickPrompt string, clickedData map[string]interface{}, componentType string) string {
	clicked, _ := json.MarshalIndent(clickedData, "", "  ")
	return fmt.Sprintf(`The user clicked on an item and wants more details.

Click instruction: %s

Clicked item data:
%s

Component type: %s

Based on this context, fetch detailed data about the clicked item. For example:
- If it's a song, get audio features, similar tracks, or play history
- If it's a stock, get detailed quotes, news, or historical data
- If it's a team, get recent games, roster, or detailed stats
- If it's an activity, get detailed metrics, splits, or comparisons

Call the appropriate functions to get detailed data for this drill-down view.`, clickPrompt, clicked, componentType)
}

// buildUISystemPrompt instructs the renderer on layout and intent.
func buildUISystemPrompt(intent, approach string) string {
	return fmt.Sprintf(`You generate self-contained HTML dashboard fragments. Use inline styles, no external assets, no script tags.
Intent: %s
Approach: %s
Render only the HTML fragment, nothing else.`, intent, approach)
}

// buildUIUserPrompt pairs the query with a summary of the fetched data.
func buildUIUserPrompt(query string, data Aggregate) string {
	return fmt.Sprintf(`Request: %s

Data available:
%s

Generate the dashboard HTML now.`, query, describeData(data))
}

// buildRefineSystemPrompt carries the current markup so the model edits
// rather than regenerates.
func buildRefineSystemPrompt(currentContent string) string {
	return fmt.Sprintf(`You refine an existing HTML dashboard fragment based on user feedback. Keep the overall structure, apply only the requested changes, and return the complete updated fragment.

Current HTML:
%s`, currentContent)
}

// buildInteractRenderPrompts produce the detail-view render messages.
func buildInteractSystemPrompt(clickedData map[string]interface{}, clickPrompt, componentType string) string {
	clicked, _ := json.MarshalIndent(clickedData, "", "  ")
	return fmt.Sprintf(`You generate a drill-down detail view as a self-contained HTML fragment. Inline styles only, no script tags.

Clicked item:
%s

Click instruction: %s
Component type: %s`, clicked, clickPrompt, componentType)
}

func buildInteractUserPrompt(clickPrompt string, data Aggregate) string {
	return fmt.Sprintf(`Clicked item: %s

Data Available:
%s

Generate the detail view HTML now.`, clickPrompt, describeData(data))
}

// describeData summarizes the aggregate as namespace/key listings so the
// prompt stays bounded regardless of payload size.
func describeData(data Aggregate) string {
	namespaces := make([]string, 0, len(data))
	for ns := range data {
		namespaces = append(namespaces, ns)
	}
	sort.Strings(namespaces)

	var b strings.Builder
	for _, ns := range namespaces {
		keys := make([]string, 0, len(data[ns]))
		for k := range data[ns] {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		payload, _ := json.Marshal(data[ns])
		fmt.Fprintf(&b, "%s (keys: %s):\n%s\n", ns, strings.Join(keys, ", "), payload)
	}
	return b.String()
}
