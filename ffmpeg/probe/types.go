package probe

// ffprobeOutput is the JSON document ffprobe writes with -of json.
type ffprobeOutput struct {
	Format  *ffprobeFormat  `json:"format"`
	Streams []ffprobeStream `json:"streams"`
	Packets []ffprobePacket `json:"packets"`
	Frames  []ffprobeFrame  `json:"frames"`
}

type ffprobeFormat struct {
	Filename   string `json:"filename"`
	NbStreams  int    `json:"nb_streams"`
	NbPrograms int    `json:"nb_programs"`
	FormatName string `json:"format_name"`
	StartTime  string `json:"start_time"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
}

type ffprobeStream struct {
	Index      int               `json:"index"`
	CodecName  string            `json:"codec_name"`
	CodecType  string            `json:"codec_type"`
	Width      int               `json:"width"`
	Height     int               `json:"height"`
	RFrameRate string            `json:"r_frame_rate"`
	SampleRate string            `json:"sample_rate"`
	BitRate    string            `json:"bit_rate"`
	Duration   string            `json:"duration"`
	Tags       map[string]string `json:"tags"`
}

type ffprobePacket struct {
	PTSTime      string `json:"pts_time"`
	DTSTime      string `json:"dts_time"`
	DurationTime string `json:"duration_time"`
	Size         string `json:"size"`
	Flags        string `json:"flags"`
}

// ffprobeFrame accepts the key names of older (pkt_*) and newer ffprobe versions.
type ffprobeFrame struct {
	PictType        string `json:"pict_type"`
	PktSize         string `json:"pkt_size"`
	PTSTime         string `json:"pts_time"`
	PktPTSTime      string `json:"pkt_pts_time"`
	PktDTSTime      string `json:"pkt_dts_time"`
	DurationTime    string `json:"duration_time"`
	PktDurationTime string `json:"pkt_duration_time"`
}

// StreamKind selects the video or audio streams of a file.
type StreamKind string

const (
	Video StreamKind = "video"
	Audio StreamKind = "audio"
)

func (k StreamKind) selector() string {
	if k == Audio {
		return "a"
	}

	return "v"
}

// DurationSource tells where the duration of a stream has been taken from.
type DurationSource int

const (
	DurationUnknown DurationSource = iota // No duration could be found
	DurationStream                        // The duration field of the stream
	DurationTag                           // The DURATION tag of the stream
	DurationFormat                        // The duration of the container
)

func (s DurationSource) String() string {
	switch s {
	case DurationStream:
		return "stream"
	case DurationTag:
		return "tag"
	case DurationFormat:
		return "format"
	}

	return "unknown"
}

// Format is the container level summary of a segment.
type Format struct {
	Filename    string
	FormatName  string
	Duration    float64 // seconds
	HasDuration bool
	BitRate     int64 // bit/s
	Size        int64 // bytes
	NbStreams   int
	NbPrograms  int
}

// VideoStream is the summary of the first video stream of a segment.
type VideoStream struct {
	Codec          string
	Width          int
	Height         int
	FrameRate      string  // rational, e.g. 30000/1001
	FPS            float64 // FrameRate as float
	Bitrate        float64 // kbit/s
	Duration       float64 // seconds
	DurationSource DurationSource
}

// AudioStream is the summary of the first audio stream of a segment.
type AudioStream struct {
	Codec          string
	SampleRate     int     // Hz
	Bitrate        float64 // kbit/s
	Duration       float64 // seconds
	DurationSource DurationSource
}

// Segment is everything the summary query revealed about a file.
type Segment struct {
	Path     string
	FileSize int64
	Format   Format
	Video    *VideoStream // nil if the file has no video stream
	Audio    *AudioStream // nil if the file has no audio stream
	Warnings []string
}

// Packet is a video packet in decoding order.
type Packet struct {
	Keyframe bool
	Size     int64
	PTS      *float64
	DTS      *float64
	Duration float64
}

// FrameInfo is a decoded video frame in presentation order.
type FrameInfo struct {
	PictType string
	Size     int64
	PTS      *float64
	DTS      *float64
	Duration float64
}
