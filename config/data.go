package config

import "github.com/datarhei/p1203/config/value"

// Data is the actual configuration data for the extractor
type Data struct {
	Mode    int    `json:"mode" validate:"min=0,max=3" jsonschema:"minimum=0,maximum=3"`
	Output  string `json:"output"`
	Strict  bool   `json:"strict"`
	Workers int    `json:"workers" validate:"min=1" jsonschema:"minimum=1"`
	Log     struct {
		Level  string   `json:"level" validate:"oneof=silent error warn info debug" jsonschema:"enum=debug,enum=info,enum=warn,enum=error,enum=silent"`
		Format string   `json:"format" validate:"oneof=console json" jsonschema:"enum=console,enum=json"`
		Topics []string `json:"topics"`
	} `json:"log"`
	FFprobe struct {
		Binary     string         `json:"binary" validate:"required"`
		Timeout    value.Duration `json:"timeout"`
		Constraint string         `json:"constraint"`
	} `json:"ffprobe"`
	QP struct {
		Binary  string `json:"binary"`
		TempDir string `json:"temp_dir"`
	} `json:"qp"`
	Frames struct {
		Source string `json:"source" validate:"oneof=packet frame" jsonschema:"enum=packet,enum=frame"`
	} `json:"frames"`
	Report struct {
		DisplaySize     string `json:"display_size" validate:"resolution"`
		Device          string `json:"device" validate:"oneof=pc mobile" jsonschema:"enum=pc,enum=mobile"`
		ViewingDistance string `json:"viewing_distance" validate:"required"`
		StreamID        int    `json:"stream_id" validate:"min=0" jsonschema:"minimum=0"`
		Stalling        string `json:"stalling"`
	} `json:"report"`
	Cache struct {
		File string `json:"file"`
	} `json:"cache"`
	Metrics struct {
		Textfile string `json:"textfile"`
	} `json:"metrics"`
}
