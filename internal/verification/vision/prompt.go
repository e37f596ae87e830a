package vision

const systemPrompt = `You review photos submitted as evidence that a volunteer class took place at an orphanage.
Answer only with the requested JSON object. Count visible children conservatively.
orphanageMatch expresses how plausible it is that the photo shows a class at the described place and time:
"high", "likely", "uncertain" or "unlikely".`

const userPromptTemplate = `Context: %s.
Report kidsCount (children visible), location (a short description of the setting, or null),
photoTimestamp (any visible date or time cue, or null), orphanageMatch and confidenceNotes (one or two sentences).`

const schemaName = "class_photo_analysis"

// responseSchema is the strict json_schema the service must answer with.
var responseSchema = map[string]any{
	"type":                 "object",
	"additionalProperties": false,
	"required":             []string{"kidsCount", "location", "photoTimestamp", "orphanageMatch", "confidenceNotes"},
	"properties": map[string]any{
		"kidsCount":      map[string]any{"type": "integer", "minimum": 0},
		"location":       map[string]any{"type": []string{"string", "null"}},
		"photoTimestamp": map[string]any{"type": []string{"string", "null"}},
		"orphanageMatch": map[string]any{
			"type": "string",
			"enum": []string{"high", "likely", "uncertain", "unlikely"},
		},
		"confidenceNotes": map[string]any{"type": "string"},
	},
}
