// Package audio decodes recordings into the sample sequences the analysis
// engine consumes.
//
// Only 16-bit integer PCM in a RIFF/WAVE container is supported; other
// containers and codecs must be converted upstream. [PCM] carries the raw
// interleaved bytes and offers down-mixing, resampling and conversion to
// float samples in [-1, 1].
package audio
