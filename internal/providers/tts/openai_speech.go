package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"slices"
	"time"

	"github.com/sandevgo/mythic/internal/config"
	"github.com/sandevgo/mythic/internal/core"
	"github.com/sandevgo/mythic/internal/worker"
	"github.com/sandevgo/mythic/pkg/log"
	"github.com/sandevgo/mythic/pkg/retry"
)

const (
	streamChunkSize = 16 << 10
	maxErrorBody    = 4 << 10
)

var ErrUnknownVoice = errors.New("unknown voice")

// OpenAISpeech is a TTS worker for the OpenAI /v1/audio/speech endpoint.
type OpenAISpeech struct {
	*worker.Lifecycle

	client  *http.Client
	cfg     config.TTSConfig
	voices  []core.Voice
	retrier *retry.Retrier
}

func NewOpenAISpeech(cfg config.TTSConfig, opts ...worker.Option) *OpenAISpeech {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	voices := make([]core.Voice, 0, len(cfg.Voices))
	for _, id := range cfg.Voices {
		voices = append(voices, core.Voice{ID: id, Name: id, Language: "en"})
	}

	s := &OpenAISpeech{
		client:  &http.Client{Timeout: timeout},
		cfg:     cfg,
		voices:  voices,
		retrier: retry.NewDefaultRetrier(),
	}
	s.Lifecycle = worker.New("tts", worker.Hooks{Init: s.init}, opts...)
	return s
}

func (s *OpenAISpeech) init(ctx context.Context) error {
	if s.cfg.BaseURL == "" {
		return errors.New("tts base url is empty")
	}
	if s.cfg.Voice != "" && !s.knownVoice(s.cfg.Voice) {
		return fmt.Errorf("%w: %s", ErrUnknownVoice, s.cfg.Voice)
	}
	log.FromCtx(ctx).Debug().Str("model", s.cfg.Model).Str("voice", s.cfg.Voice).Msg("tts configured")
	return nil
}

func (s *OpenAISpeech) knownVoice(id string) bool {
	return slices.ContainsFunc(s.voices, func(v core.Voice) bool { return v.ID == id })
}

func (s *OpenAISpeech) voiceOrDefault(voice string) (string, error) {
	if voice == "" {
		voice = s.cfg.Voice
	}
	if len(s.voices) > 0 && !s.knownVoice(voice) {
		return "", retry.Permanent(fmt.Errorf("%w: %s", ErrUnknownVoice, voice))
	}
	return voice, nil
}

func (s *OpenAISpeech) open(ctx context.Context, text, voice string) (*http.Response, error) {
	voice, err := s.voiceOrDefault(voice)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(map[string]string{
		"model":           s.cfg.Model,
		"input":           text,
		"voice":           voice,
		"response_format": s.cfg.Format,
	})
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("marshal: %w", err))
	}

	var resp *http.Response
	err = s.retrier.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+"/v1/audio/speech", bytes.NewReader(data))
		if err != nil {
			return retry.Permanent(fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")
		if s.cfg.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
		}

		r, err := s.client.Do(req)
		if err != nil {
			return fmt.Errorf("request: %w", err)
		}
		if r.StatusCode != http.StatusOK {
			defer r.Body.Close()
			body, _ := io.ReadAll(io.LimitReader(r.Body, maxErrorBody))
			err := fmt.Errorf("http %d: %s", r.StatusCode, string(body))
			if r.StatusCode == http.StatusTooManyRequests || r.StatusCode >= 500 {
				return err
			}
			return retry.Permanent(err)
		}
		resp = r
		return nil
	})
	return resp, err
}

// Synthesize returns the complete audio for text.
func (s *OpenAISpeech) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if err := s.Check("synthesize"); err != nil {
		return nil, err
	}
	resp, err := s.open(ctx, text, voice)
	if err != nil {
		return nil, s.Track("synthesize", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err == nil && len(audio) == 0 {
		err = errors.New("empty audio response")
	}
	if err != nil {
		return nil, s.Track("synthesize", err)
	}
	return audio, s.Track("synthesize", nil)
}

// SynthesizeStream yields the audio body in fixed-size chunks as it arrives.
// Callers must range over the sequence to release the response.
func (s *OpenAISpeech) SynthesizeStream(ctx context.Context, text, voice string) (iter.Seq2[[]byte, error], error) {
	if err := s.Check("synthesize_stream"); err != nil {
		return nil, err
	}
	resp, err := s.open(ctx, text, voice)
	if err != nil {
		return nil, s.Track("synthesize_stream", err)
	}

	return func(yield func([]byte, error) bool) {
		defer resp.Body.Close()
		buf := make([]byte, streamChunkSize)
		for {
			n, err := io.ReadFull(resp.Body, buf)
			if n > 0 {
				if !yield(slices.Clone(buf[:n]), nil) {
					return
				}
			}
			switch {
			case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
				_ = s.Track("synthesize_stream", nil)
				return
			case err != nil:
				yield(nil, s.Track("synthesize_stream", err))
				return
			}
		}
	}, nil
}

func (s *OpenAISpeech) ListVoices(context.Context) ([]core.Voice, error) {
	if err := s.Check("list_voices"); err != nil {
		return nil, err
	}
	return slices.Clone(s.voices), nil
}
