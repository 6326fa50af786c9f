package env

import (
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name     string        `env:"NAME,required"`
	Port     int           `env:"PORT"`
	Debug    bool          `env:"DEBUG"`
	Ratio    float64       `env:"RATIO"`
	Timeout  time.Duration `env:"TIMEOUT"`
	Voices   []string      `env:"VOICES" envSeparator:";"`
	Prompt   string        `env:"PROMPT"`
	Empty    string        `env:"EMPTY"`
	Untagged string
	hidden   string `env:"HIDDEN"`
}

type other struct {
	Token string `env:"TOKEN"`
}

func TestMarshalEnv(t *testing.T) {
	s := &sample{
		Name:     "mythic",
		Port:     8080,
		Debug:    true,
		Ratio:    0.5,
		Timeout:  30 * time.Second,
		Voices:   []string{"alloy", "nova"},
		Prompt:   "Be brief # always",
		Untagged: "x",
		hidden:   "y",
	}

	got, err := MarshalEnv(s, other{Token: "abc"}, (*other)(nil))
	require.NoError(t, err)

	want := "NAME=mythic\nPORT=8080\nDEBUG=true\nRATIO=0.5\nTIMEOUT=30s\nVOICES=alloy;nova\n" +
		"PROMPT=\"Be brief # always\"\nTOKEN=abc\n"
	assert.Equal(t, want, got)

	parsed, err := godotenv.Unmarshal(got)
	require.NoError(t, err)
	assert.Equal(t, "Be brief # always", parsed["PROMPT"])
	assert.Equal(t, "30s", parsed["TIMEOUT"])
}

func TestMarshalEnv_Empty(t *testing.T) {
	got, err := MarshalEnv(&sample{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMarshalEnv_NotStruct(t *testing.T) {
	_, err := MarshalEnv(42)
	require.Error(t, err)
}
