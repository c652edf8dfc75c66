package models

// Request bodies sent to the stage start endpoints. Field names follow the backend's JSON.

type EaseVoiceRequest struct {
	ProjectDir string `json:"project_dir"`
}

type UVR5Request struct {
	ModelName   string `json:"model_name"`
	AudioFormat string `json:"audio_format"`
	SourceDir   string `json:"source_dir"`
	OutputDir   string `json:"output_dir"`
}

type SlicerRequest struct {
	SourceDir     string  `json:"source_dir"`
	OutputDir     string  `json:"output_dir"`
	Threshold     int     `json:"threshold"`
	MinLength     int     `json:"min_length"`
	MinInterval   int     `json:"min_interval"`
	HopSize       int     `json:"hop_size"`
	MaxSilentKept int     `json:"max_silent_kept"`
	NormalizeMax  float64 `json:"normalize_max"`
	AlphaMix      float64 `json:"alpha_mix"`
	NumProcess    int     `json:"num_process"`
}

type DenoiseRequest struct {
	SourceDir string `json:"source_dir"`
	OutputDir string `json:"output_dir"`
}

type ASRRequest struct {
	SourceDir string `json:"source_dir"`
	OutputDir string `json:"output_dir"`
	ASRModel  string `json:"asr_model"`
	ModelSize string `json:"model_size"`
	Language  string `json:"language"`
	Precision string `json:"precision"`
}

type NormalizeRequest struct {
	SourceDir string `json:"source_dir"`
	OutputDir string `json:"output_dir"`
}

type SovitsTrainRequest struct {
	TrainInputDir      string  `json:"train_input_dir"`
	OutputModelName    string  `json:"output_model_name"`
	BatchSize          int     `json:"batch_size"`
	TotalEpochs        int     `json:"total_epochs"`
	SaveEveryEpoch     int     `json:"save_every_epoch"`
	TextLowLRRate      float64 `json:"text_low_lr_rate"`
	IfSaveLatest       bool    `json:"if_save_latest"`
	IfSaveEveryWeights bool    `json:"if_save_every_weights"`
	GPUIDs             string  `json:"gpu_ids"`
}

type GPTTrainRequest struct {
	TrainInputDir      string `json:"train_input_dir"`
	OutputModelName    string `json:"output_model_name"`
	BatchSize          int    `json:"batch_size"`
	TotalEpochs        int    `json:"total_epochs"`
	SaveEveryEpoch     int    `json:"save_every_epoch"`
	IfDPO              bool   `json:"if_dpo"`
	IfSaveLatest       bool   `json:"if_save_latest"`
	IfSaveEveryWeights bool   `json:"if_save_every_weights"`
	GPUIDs             string `json:"gpu_ids"`
}

// RefinementItem is one transcript line produced by ASR.
type RefinementItem struct {
	SourceFilePath string `json:"source_file_path" yaml:"source_file_path"`
	Language       string `json:"language" yaml:"language"`
	Text           string `json:"text" yaml:"text"`
}

type RefinementRequest struct {
	InputDir       string `json:"input_dir"`
	OutputDir      string `json:"output_dir"`
	SourceFilePath string `json:"source_file_path,omitempty"`
	Language       string `json:"language,omitempty"`
	Text           string `json:"text,omitempty"`
}

// VoiceCloneRequest is the synthesis request. RefAudio carries the base64 encoded
// reference clip.
type VoiceCloneRequest struct {
	Text            string  `json:"text"`
	TextLang        string  `json:"text_lang"`
	RefAudio        string  `json:"ref_audio"`
	PromptText      string  `json:"prompt_text"`
	PromptLang      string  `json:"prompt_lang"`
	TextSplitMethod string  `json:"text_split_method"`
	BatchSize       int     `json:"batch_size"`
	SpeedFactor     float64 `json:"speed_factor"`
	TopK            int     `json:"top_k"`
	TopP            float64 `json:"top_p"`
	Temperature     float64 `json:"temperature"`
	SovitsPath      string  `json:"sovits_path"`
	GPTPath         string  `json:"gpt_path"`
}

// VoiceCloneModels lists the trained model files available in a project.
type VoiceCloneModels struct {
	GPTs   []string `json:"gpts" yaml:"gpts"`
	Sovits []string `json:"sovits" yaml:"sovits"`
}

// StartResponse is returned by every stage start endpoint.
type StartResponse struct {
	UUID    string `json:"uuid"`
	Message string `json:"message,omitempty"`
}
