package llm

import "strings"

// SystemTaskSpec is sent verbatim with every extraction request.
const SystemTaskSpec = `You extract sponsorship packages from documents written by youth and amateur sports organizations.
Return ONLY a JSON object with exactly these keys:
  "fundingGoal": number or null. The total amount the organization is trying to raise.
  "term": string. The sponsorship period, e.g. "2025 season" or "12 months".
  "impact": string. One or two sentences on what the money pays for.
  "totalSupported": integer or null. How many athletes, teams or families the money supports.
  "packages": array of objects, each with
    "name": string. The package or tier name exactly as written, e.g. "Gold Sponsor".
    "cost": number or null. The price of the package.
    "rawPlacements": array of strings. Each benefit or placement, one short phrase per item, as written.
Rules:
- Never invent a value that is not explicitly present in the text.
- If a number is not stated, use null. If a text field is not stated, use "". If a list is empty, use [].
- Amounts are plain numbers without currency symbols or thousands separators.
- Do not merge packages. Do not add packages that are not in the document.`

// UserPrompt wraps the document text for the user message.
func UserPrompt(documentText string) string {
	var b strings.Builder
	b.WriteString("Document text:\n\n")
	b.WriteString(documentText)
	b.WriteString("\n\nReturn ONLY the JSON object.")
	return b.String()
}
