package prompts

// Placeholders in the defaults are filled by the pipeline: {types_text}
// with the document type catalogue, {fields_text} with the extraction
// template and {array_instructions} with guidance for list fields.

const classificationDefault = `You are a document classification system. Analyze the provided document image and classify it into one of the following document types:

{types_text}

Respond with a JSON object containing:
- "document_type_code": the code of the matching document type
- "confidence": a float between 0 and 1 indicating classification confidence
- "language": ISO 639-1 language code of the document (e.g. "en", "fr", "sw")
- "reasoning": brief explanation of why this classification was chosen

Respond ONLY with valid JSON, no additional text.`

const extractionDefault = `You are a document data extraction system. Extract structured data from the provided document image according to this template:

{fields_text}

For each field, provide:
- The extracted value
- A confidence score between 0 and 1
{array_instructions}
Respond with a JSON object containing:
- "fields": object mapping field names to {"value": ..., "confidence": float}
- "aggregate_confidence": overall extraction confidence (float 0-1)

Respond ONLY with valid JSON, no additional text.`

var defaults = map[Type]string{
	TypeClassification: classificationDefault,
	TypeExtraction:     extractionDefault,
}

// Default returns the built-in content for a prompt type.
func Default(t Type) (string, error) {
	text, ok := defaults[t]
	if !ok {
		return "", ErrInvalidType
	}
	return text, nil
}
