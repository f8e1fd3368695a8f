package analysis

// Label is the classifier's binary verdict on one image.
type Label string

const (
	LabelInfractor   Label = "infractor"
	LabelNoInfractor Label = "no_infractor"
)

// Verdict is the interpreted outcome for one image. ConfidencePct is the
// model's confidence in the chosen label, not the raw sigmoid output.
type Verdict struct {
	Label         Label   `json:"label"`
	ConfidencePct float64 `json:"confidence_pct"`
	RawScore      float64 `json:"raw_score"`
}

// StagedResult holds one analyzed image awaiting persistence. It lives only in
// memory; the original upload bytes are kept so the saved copy is byte-for-byte
// identical to what the operator reviewed.
type StagedResult struct {
	FileName string
	Data     []byte
	Verdict  Verdict
}

// Record mirrors one imagen_analisis row.
type Record struct {
	ID          int64   `json:"id"`
	EmployeeID  int64   `json:"id_empleado"`
	ClientID    int64   `json:"id_cliente"`
	FileName    string  `json:"nombre_archivo"`
	Result      Label   `json:"resultado"`
	Probability float64 `json:"probabilidad"`
	Confidence  float64 `json:"confianza"`
	ImagePath   string  `json:"ruta_imagen"`
}

// BatchEntry is one staged image handed to the store for persistence.
type BatchEntry struct {
	FileName string
	Data     []byte
	Label    Label
	RawScore float64
}
