package capsule

import (
	"io"

	"github.com/pkg/errors"
)

const (
	serialLength   = 9
	serialAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	devSentinel    = 'T'
)

// GenerateSerial draws a fresh serial number and sets it on the workflow.
// Production serials are nine characters from [A-Z0-9] with a first
// character that is never the development sentinel; development serials fix
// the first character to 'T' so test data is recognizable and the two
// formats cannot collide.
func (w *Workflow) GenerateSerial(devMode bool) (string, error) {
	serial, err := generateSerial(w.randPool, devMode)
	if err != nil {
		return "", err
	}
	w.serialNumber = serial
	return serial, nil
}

func generateSerial(random io.Reader, devMode bool) (string, error) {
	out := make([]byte, serialLength)
	if devMode {
		out[0] = devSentinel
	} else {
		c, err := randomChar(random, serialAlphabet)
		if err != nil {
			return "", err
		}
		for c == devSentinel {
			if c, err = randomChar(random, serialAlphabet); err != nil {
				return "", err
			}
		}
		out[0] = c
	}
	for i := 1; i < serialLength; i++ {
		c, err := randomChar(random, serialAlphabet)
		if err != nil {
			return "", err
		}
		out[i] = c
	}
	return string(out), nil
}

// randomChar picks one character uniformly via rejection sampling, so the
// 36-character alphabet is not biased by the 256-value byte range.
func randomChar(random io.Reader, alphabet string) (byte, error) {
	limit := byte(256 - 256%len(alphabet))
	buf := make([]byte, 1)
	for {
		if _, err := io.ReadFull(random, buf); err != nil {
			return 0, errors.Wrap(err, "[generateSerial] read randomness")
		}
		if buf[0] < limit {
			return alphabet[int(buf[0])%len(alphabet)], nil
		}
	}
}
