package search

// ComplaintMapping represents the Elasticsearch mapping for complaints.
type ComplaintMapping struct {
	Settings ComplaintSettings `json:"settings"`
	Mappings ComplaintMappings `json:"mappings"`
}

// ComplaintSettings defines index-level settings.
type ComplaintSettings struct {
	BaseSettings
}

// ComplaintMappings defines the field mappings for complaints.
type ComplaintMappings struct {
	Properties ComplaintProperties `json:"properties"`
}

// ComplaintProperties defines the properties for each field in the complaint
// mapping. Citizen text is analyzed for full-text search; everything the API
// filters on is a keyword.
type ComplaintProperties struct {
	// Core identifiers
	ID   Field `json:"id"`
	Text Field `json:"text"`

	// Classification
	Category         Field `json:"category"`
	Confidence       Field `json:"confidence"`
	LowConfidence    Field `json:"low_confidence"`
	PredictionSource Field `json:"prediction_source"`
	ModelVersion     Field `json:"model_version"`

	// Lifecycle
	Status            Field `json:"status"`
	Votes             Field `json:"votes"`
	ContributingTexts Field `json:"contributing_texts"`

	// Ranking snapshot computed at index time
	PriorityScore Field `json:"priority_score"`

	// Timestamps
	SubmittedAt Field `json:"submitted_at"`
	UpdatedAt   Field `json:"updated_at"`
	IndexedAt   Field `json:"indexed_at"`
}

// Field represents an Elasticsearch field mapping.
type Field struct {
	Type     string `json:"type,omitempty"`
	Analyzer string `json:"analyzer,omitempty"`
	Format   string `json:"format,omitempty"`
}

// BaseSettings defines common index-level settings.
type BaseSettings struct {
	NumberOfShards   int `json:"number_of_shards"`
	NumberOfReplicas int `json:"number_of_replicas"`
}

// DefaultSettings returns the default index settings.
func DefaultSettings() BaseSettings {
	return BaseSettings{
		NumberOfShards:   1,
		NumberOfReplicas: 1,
	}
}

// NewComplaintMapping creates the complaint mapping with default settings.
func NewComplaintMapping() *ComplaintMapping {
	return &ComplaintMapping{
		Settings: ComplaintSettings{
			BaseSettings: DefaultSettings(),
		},
		Mappings: ComplaintMappings{
			Properties: ComplaintProperties{
				ID: Field{
					Type: "keyword",
				},
				Text: Field{
					Type:     "text",
					Analyzer: "standard",
				},
				Category: Field{
					Type: "keyword",
				},
				Confidence: Field{
					Type: "float",
				},
				LowConfidence: Field{
					Type: "boolean",
				},
				PredictionSource: Field{
					Type: "keyword",
				},
				ModelVersion: Field{
					Type: "keyword",
				},
				Status: Field{
					Type: "keyword",
				},
				Votes: Field{
					Type: "integer",
				},
				ContributingTexts: Field{
					Type:     "text",
					Analyzer: "standard",
				},
				PriorityScore: Field{
					Type: "double",
				},
				SubmittedAt: Field{
					Type:   "date",
					Format: "strict_date_optional_time||epoch_millis",
				},
				UpdatedAt: Field{
					Type:   "date",
					Format: "strict_date_optional_time||epoch_millis",
				},
				IndexedAt: Field{
					Type:   "date",
					Format: "strict_date_optional_time||epoch_millis",
				},
			},
		},
	}
}
