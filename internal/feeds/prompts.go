package feeds

import (
	"fmt"

	"google.golang.org/genai"
)

func aiNewsPrompt(count int) string {
	return fmt.Sprintf(`You are an expert AI news analyst. Provide the %d most recent and significant AI news.
Focus on tools like Gemini, ChatGPT, Claude, and open-source models.
Output must be valid JSON matching the schema.`, count)
}

func aiNewsStreamPrompt(count int) string {
	return fmt.Sprintf(`You are an expert AI news analyst.
Task: Provide the %d most recent and significant news items about AI.
Output Format: JSON Lines. Each line must be a single, valid JSON object. DO NOT wrap the output in an array [].

Structure for each JSON object:
{"title": "Concise headline (max 2 lines)", "summary": "Brief summary in Arabic (max 4 lines)", "link": "Official URL or source", "details": "Detailed explanation in Arabic"}

Ensure the content is fresh and relevant. Start outputting immediately.`, count)
}

func phoneNewsPrompt(count int) string {
	return fmt.Sprintf(`You are a smartphone industry analyst. List the %d most recently announced or released smartphones.
For each phone give the exact model name, a short summary in Arabic, and its key specifications
(display, processor, cameras, battery, charging) as short Arabic strings.
Output must be valid JSON matching the schema.`, count)
}

func newsSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"title":   {Type: genai.TypeString, Description: "عنوان الخبر"},
				"summary": {Type: genai.TypeString, Description: "ملخص قصير بالعربية"},
				"link":    {Type: genai.TypeString, Description: "رابط المصدر"},
				"details": {Type: genai.TypeString, Description: "تفاصيل أكثر عن الخبر بالعربية"},
			},
			Required: []string{"title", "summary", "link", "details"},
		},
	}
}

func phoneSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"modelName": {Type: genai.TypeString, Description: "اسم الهاتف"},
				"summary":   {Type: genai.TypeString, Description: "ملخص قصير بالعربية"},
				"specs": {
					Type:        genai.TypeArray,
					Items:       &genai.Schema{Type: genai.TypeString},
					Description: "أهم المواصفات",
				},
			},
			Required: []string{"modelName", "summary", "specs"},
		},
	}
}
