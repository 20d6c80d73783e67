// Package media decodes the raw payloads captured by exam clients: webcam
// frames posted as base64 images and microphone chunks posted as WAV audio.
package media
