package perception

import "google.golang.org/genai"

// ResponseSchema describes the JSON object the engine must return.
// shortAnswer and needsClarification are always required; the four analysis
// sections are required whenever analysis is present.
func ResponseSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"shortAnswer": {
				Type:        genai.TypeString,
				Description: "A concise answer (Yes, No, or caveat). Keep it under 20 words.",
			},
			"needsClarification": {
				Type:        genai.TypeBoolean,
				Description: "True if the model absolutely needs more info to give a minimal ethical judgment. False if it can proceed with general assumptions.",
			},
			"clarificationQuestion": {
				Type:        genai.TypeString,
				Description: "The question to ask the user if clarification is needed.",
			},
			"analysis": {
				Type:        genai.TypeObject,
				Description: "The application of the ethical framework.",
				Properties: map[string]*genai.Schema{
					"ruleConsequentialism": {
						Type:        genai.TypeString,
						Description: "Analysis based on principles whose universal laws make things go best.",
					},
					"kantianContractualism": {
						Type:        genai.TypeString,
						Description: "Analysis based on principles everyone could rationally will to be universal laws.",
					},
					"scanlonianContractualism": {
						Type:        genai.TypeString,
						Description: "Analysis based on principles no one could reasonably reject.",
					},
					"synthesis": {
						Type:        genai.TypeString,
						Description: "How these three converge to the final judgment.",
					},
				},
				Required: []string{"ruleConsequentialism", "kantianContractualism", "scanlonianContractualism", "synthesis"},
			},
		},
		Required: []string{"shortAnswer", "needsClarification"},
	}
}
