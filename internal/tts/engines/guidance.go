package engines

import (
	"errors"
	"strings"

	"github.com/dgnsrekt/scenecast/internal/tts"
)

// Guidance returns setup instructions for an engine that failed to start or
// validate. It returns "" when there is nothing useful to say.
func Guidance(engine string, err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, tts.ErrInvalidEngine) {
		return invalidEngineGuidance
	}

	msg := err.Error()
	switch strings.ToLower(engine) {
	case NamePiper:
		switch {
		case strings.Contains(msg, "not found in PATH"):
			return piperInstallGuidance
		case strings.Contains(msg, "model"):
			return piperModelGuidance
		}
	case NameGTTS, "google":
		switch {
		case strings.Contains(msg, "gtts-cli"):
			return gttsInstallGuidance
		case strings.Contains(msg, "ffmpeg"):
			return ffmpegInstallGuidance
		}
	}
	return ""
}

const invalidEngineGuidance = `Please choose an engine:
  scenecast --engine piper project.yml   # offline
  scenecast --engine gtts project.yml    # Google TTS, online
  scenecast --engine mock project.yml    # silent, for trying things out

Or set a default in scenecast.yml:
  engine:
    engine: piper`

const piperInstallGuidance = `Piper TTS is not installed. To install:

1. Download a release from https://github.com/rhasspy/piper/releases
2. Extract it and put the piper binary on your PATH:
   tar -xzf piper_linux_x86_64.tar.gz
   sudo cp piper/piper /usr/local/bin/
3. Download a voice from https://github.com/rhasspy/piper/blob/master/VOICES.md`

const piperModelGuidance = `Piper needs a voice model. To configure one:

1. Download a model and its .onnx.json config:
   mkdir -p ~/.local/share/piper/models
   cd ~/.local/share/piper/models
   wget https://huggingface.co/rhasspy/piper-voices/resolve/v1.0.0/en/en_US/amy/medium/en_US-amy-medium.onnx
   wget https://huggingface.co/rhasspy/piper-voices/resolve/v1.0.0/en/en_US/amy/medium/en_US-amy-medium.onnx.json

2. Point scenecast.yml at the directory; project voices name the model:
   engine:
     piper:
       model_dir: ~/.local/share/piper/models`

const gttsInstallGuidance = `gTTS is not installed. To install:

   pipx install gtts     # or: pip install gtts

Verify with: gtts-cli --help
No API key is needed, but gTTS requires an internet connection.`

const ffmpegInstallGuidance = `ffmpeg is required to convert gTTS audio. To install:

# Ubuntu/Debian
sudo apt install ffmpeg

# Fedora
sudo dnf install ffmpeg

# macOS (Homebrew)
brew install ffmpeg

# Arch Linux
sudo pacman -S ffmpeg`
