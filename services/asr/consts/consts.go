package consts

const (
	// Audio formats accepted for transcription
	MIMEWebM = "audio/webm"
	MIMEMP3  = "audio/mp3"
	MIMEMP4  = "audio/mp4"
	MIMEMPEG = "audio/mpeg"
	MIMEWAV  = "audio/wav"
	MIMEM4A  = "audio/m4a"

	MaxAudioSize = 25 * 1024 * 1024 // 25MB
	// MaxMessageSize bounds gRPC messages so a full-size upload fits.
	MaxMessageSize = MaxAudioSize + 1024*1024

	DefaultTranscribeModel = "whisper-1"
	DefaultSummaryModel    = "gpt-4o-mini"
	DefaultLanguage        = "en"

	SummaryMaxTokens   = 500
	SummaryTemperature = 0.3
)

var AllowedMIMETypes = map[string]bool{
	MIMEWebM: true,
	MIMEMP3:  true,
	MIMEMP4:  true,
	MIMEMPEG: true,
	MIMEWAV:  true,
	MIMEM4A:  true,
}
