package models

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Stage identifies one step of the voice-cloning and training pipeline.
type Stage string

const (
	StageEaseVoice  Stage = "easevoice"
	StageUVR5       Stage = "uvr5"
	StageSlicer     Stage = "slicer"
	StageDenoise    Stage = "denoise"
	StageASR        Stage = "asr"
	StageRefinement Stage = "refinement"
	StageNormalize  Stage = "normalize"
	StageSovits     Stage = "sovits"
	StageGPT        Stage = "gpt"
	StageVoiceClone Stage = "voiceclone"
)

// Stages lists every stage in pipeline order.
var Stages = []Stage{
	StageEaseVoice,
	StageUVR5,
	StageSlicer,
	StageDenoise,
	StageASR,
	StageRefinement,
	StageNormalize,
	StageSovits,
	StageGPT,
	StageVoiceClone,
}

var stageTitles = map[Stage]string{
	StageEaseVoice:  "easevoice one-click",
	StageUVR5:       "vocal extraction",
	StageSlicer:     "audio slicing",
	StageDenoise:    "denoise",
	StageASR:        "transcription",
	StageRefinement: "text refinement",
	StageNormalize:  "normalization",
	StageSovits:     "sovits training",
	StageGPT:        "gpt training",
	StageVoiceClone: "voice clone",
}

// ParseStage resolves a stage from its name, case-insensitively.
func ParseStage(s string) (Stage, error) {
	candidate := Stage(strings.ToLower(strings.TrimSpace(s)))
	for _, st := range Stages {
		if st == candidate {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown stage %q", s)
}

// Title returns a human readable name for the stage.
func (s Stage) Title() string {
	title, ok := stageTitles[s]
	if !ok {
		title = string(s)
	}
	return cases.Title(language.English).String(title)
}

func (s Stage) String() string {
	return string(s)
}
