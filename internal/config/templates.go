package config

import (
	"fmt"
	"os"
	"strings"
)

// Config kinds accepted by Template.
const (
	KindSender   = "sender"
	KindReceiver = "receiver"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case KindSender:
		return senderTemplate, nil
	case KindReceiver:
		return receiverTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const senderTemplate = `address = "127.0.0.1"
port = 12345
packet_size = 1024
pacing = "1ms"
terminate = true

[source]
kind = "synthetic"
tag = 0
count = 30
frame_size = 100000
`

const receiverTemplate = `address = "0.0.0.0"
port = 12345
packet_size = 1024
idle_timeout = "10s"
slots = 100
max_fragments = 65536
admin_addr = ""
cors_origins = ["http://localhost:3000"]

[sink]
kind = "dir"
dir = "frames"
`
