package extract

import (
	"encoding/json"
	"fmt"
	"strings"
)

const rulesPrompt = `Rules:
- Only include actionable items: forms, payments, events, purchases, transport, volunteering.
- Exclude greetings, praise, newsletters and general updates that ask nothing of the family.
- Group by topic. Lines that describe the same real-world activity become ONE task; fold sub-details into "description".
- "title" is a short topic label without verbs, for example "Picture Day" or "Field Trip Permission".
- If an event requires attire, do not create a separate task for clothing; note the attire in "description".
- Choose exactly one action per actor. Parent priority: ATTEND > PAY > SUBMIT > SIGN > PURCHASE > TRANSPORT > VOLUNTEER > OTHER > NONE. Student priority: ATTEND > SUBMIT > SETUP > WEAR > BRING > COLLECT > PREPARE > OTHER > NONE.
- "due_date" is YYYY-MM-DD and only when a date is explicitly stated. When several dates apply, use the earliest and mention the later ones in "description".
- "consequence_if_ignore": infer it when the email does not state it.
- Requirement level per actor: MANDATORY when a consequence is stated or the requirement is explicit; VOLUNTEER_OPPORTUNITY when volunteers are explicitly sought; OPTIONAL when merely encouraged; NONE when that actor has no action.
- Use only the fields defined in the schema. Do not add other keys.`

// ExtractSystemPrompt instructs the model for a single email.
const ExtractSystemPrompt = `You extract actionable school tasks for a busy parent.
Output must strictly validate against the provided JSON Schema.

` + rulesPrompt

// MergeSystemPrompt instructs the model to consolidate an existing list with a new email.
const MergeSystemPrompt = `You are a careful assistant for a busy parent.
You are given an existing list of tasks and a new email (which may be empty).
Combine the existing tasks with any tasks found in the email, merging entries that describe the same activity.
Return the FULL deduplicated list: every existing task must appear in the output, either unchanged or merged with the entry it duplicates.
If the email is empty and no two existing tasks describe the same activity, return the existing list unchanged.
Output must strictly validate against the provided JSON Schema.

` + rulesPrompt

// mergeUserPrompt renders the existing tasks and the email for ExtractMerged.
func mergeUserPrompt(text string, existing []Candidate) (string, error) {
	if existing == nil {
		existing = []Candidate{}
	}
	payload, err := json.MarshalIndent(envelope{Tasks: existing}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal existing tasks: %w", err)
	}
	var sb strings.Builder
	sb.WriteString("Existing tasks:\n")
	sb.Write(payload)
	sb.WriteString("\n\nEmail:\n")
	sb.WriteString(text)
	return sb.String(), nil
}
