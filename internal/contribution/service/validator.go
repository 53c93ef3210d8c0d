package service

import (
	"fmt"
	"strings"

	"github.com/agentwood/voiceledger/internal/contribution/domain"
)

const (
	minDurationSeconds = 10
	maxDurationSeconds = 60
	maxFileSizeBytes   = 10 * 1024 * 1024
	minSampleRate      = 16000

	autoApproveQualityThreshold = 70
	autoApproveNoiseThreshold   = 40
)

var allowedFormats = map[string]bool{
	"audio/wav":  true,
	"audio/mpeg": true,
	"audio/mp3":  true,
	"audio/webm": true,
}

// validationResult scores a sample against the admission constraints.
// Violations subtract weighted penalties from 100; soft issues become
// warnings and never block.
type validationResult struct {
	QualityScore int
	Errors       []string
	Warnings     []string
}

func validateSample(audio *domain.SampleAudio) validationResult {
	result := validationResult{QualityScore: 100}

	if audio.SizeBytes > maxFileSizeBytes {
		result.fail(30, fmt.Sprintf("file too large, maximum is %dMB", maxFileSizeBytes/1024/1024))
	}

	if audio.MIMEType != "" && !allowedFormats[strings.ToLower(audio.MIMEType)] {
		result.fail(50, fmt.Sprintf("invalid format %s, allowed: wav, mp3, webm", audio.MIMEType))
	}

	switch {
	case audio.DurationSeconds <= 0:
		result.fail(40, "audio duration unknown")
	case audio.DurationSeconds < minDurationSeconds:
		result.fail(40, fmt.Sprintf("audio too short, minimum is %d seconds", minDurationSeconds))
	case audio.DurationSeconds > maxDurationSeconds:
		result.fail(20, fmt.Sprintf("audio too long, maximum is %d seconds", maxDurationSeconds))
	}

	if audio.SampleRate > 0 && audio.SampleRate < minSampleRate {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("low sample rate %dHz, recommended 44100Hz or higher", audio.SampleRate))
		result.QualityScore -= 10
	}

	if audio.Channels > 2 {
		result.Warnings = append(result.Warnings, "multi-channel audio will be converted to mono")
	}

	if result.QualityScore < 0 {
		result.QualityScore = 0
	}
	return result
}

func (r *validationResult) fail(penalty int, message string) {
	r.Errors = append(r.Errors, message)
	r.QualityScore -= penalty
}

func shouldAutoApprove(qualityScore, noiseScore int) bool {
	return qualityScore >= autoApproveQualityThreshold && noiseScore <= autoApproveNoiseThreshold
}

func formatFromMIME(mimeType, filename string) string {
	if idx := strings.Index(mimeType, "/"); idx >= 0 && idx+1 < len(mimeType) {
		return mimeType[idx+1:]
	}
	if idx := strings.LastIndex(filename, "."); idx >= 0 && idx+1 < len(filename) {
		return filename[idx+1:]
	}
	return "wav"
}
