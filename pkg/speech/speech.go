package speech

import (
	"context"
	"errors"
	"fmt"
	"io"

	openaisdk "github.com/openai/openai-go"
)

type Config struct {
	Model string `split_words:"true" default:"gpt-4o-mini-tts"`
	Voice string `split_words:"true" default:"alloy"`
}

// Synthesizer renders assistant narratives to spoken audio so voice sessions
// can play the reply back instead of showing text.
type Synthesizer struct {
	client *openaisdk.Client
	model  string
	voice  string
}

func NewSynthesizer(client *openaisdk.Client, cfg Config) (*Synthesizer, error) {
	if client == nil {
		return nil, errors.New("speech: openai client is required")
	}
	return &Synthesizer{
		client: client,
		model:  cfg.Model,
		voice:  cfg.Voice,
	}, nil
}

// Synthesize returns MP3 audio for the given narrative.
func (s *Synthesizer) Synthesize(ctx context.Context, narrative string) ([]byte, error) {
	if narrative == "" {
		return nil, errors.New("speech: narrative is empty")
	}

	resp, err := s.client.Audio.Speech.New(ctx, openaisdk.AudioSpeechNewParams{
		Model:          openaisdk.SpeechModel(s.model),
		Input:          narrative,
		Voice:          openaisdk.AudioSpeechNewParamsVoice(s.voice),
		ResponseFormat: openaisdk.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		return nil, fmt.Errorf("speech: synthesize: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("speech: read audio: %w", err)
	}
	return audio, nil
}
