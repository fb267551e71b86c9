package openapi

// NewComponents creates Components with shared schemas and error responses.
func NewComponents() *Components {
	return &Components{
		Schemas: map[string]*Schema{
			"Error": {
				Type: "object",
				Properties: map[string]*Schema{
					"error": {Type: "string", Description: "Error message"},
				},
			},
			"PageRequest": {
				Type: "object",
				Properties: map[string]*Schema{
					"page":      {Type: "integer", Description: "Page number (1-indexed)", Example: 1},
					"page_size": {Type: "integer", Description: "Results per page", Example: 20},
					"search":    {Type: "string", Description: "Search query"},
					"sort":      {Type: "string", Description: "Comma-separated sort fields. Prefix with - for descending. Example: -updated_at"},
				},
			},
			"Object": {Type: "object"},
		},
		Responses: map[string]*Response{
			"BadRequest":  errorResponse("Invalid request"),
			"NotFound":    errorResponse("Thread, artifact, or blob not found"),
			"Conflict":    errorResponse("Thread exists, is locked, or is not in a resumable state"),
			"ServerError": errorResponse("Generation, storage, or replica failure"),
		},
	}
}

func errorResponse(description string) *Response {
	return &Response{
		Description: description,
		Content: map[string]*MediaType{
			"application/json": {Schema: SchemaRef("Error")},
		},
	}
}
