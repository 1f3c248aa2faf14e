package main

import (
	"strings"

	"github.com/goevery/courier/internal/realtime"
)

type Settings struct {
	Port             int    `env:"PORT,default=8000"`
	BasePath         string `env:"BASE_PATH,default=/courier"`
	LogEncoding      string `env:"LOG_ENCODING,default=console"`
	LogLevel         string `env:"LOG_LEVEL,default=debug"`
	JWTSecret        string `env:"JWT_SECRET,required=true"`
	APIKeys          string `env:"API_KEYS"`
	SocketURL        string `env:"SOCKET_URL,default=http://localhost:5000"`
	SessionTokenFile string `env:"SESSION_TOKEN_FILE,default=.courier/session"`
	Namespaces       string `env:"NAMESPACES"`
	MongoDBURI       string `env:"MONGODB_URI"`
	MongoDBDatabase  string `env:"MONGODB_DATABASE,default=courier"`
	AllowedOrigins   string `env:"ALLOWED_ORIGINS,default=*"`
}

func (s Settings) APIKeyList() []string {
	return splitList(s.APIKeys)
}

func (s Settings) AllowedOriginList() []string {
	return splitList(s.AllowedOrigins)
}

// StartupNamespaces returns the namespaces connected at start; all of them
// when NAMESPACES is empty.
func (s Settings) StartupNamespaces() ([]realtime.Namespace, error) {
	values := splitList(s.Namespaces)
	if len(values) == 0 {
		return realtime.Namespaces, nil
	}

	namespaces := make([]realtime.Namespace, 0, len(values))
	for _, value := range values {
		namespace, err := realtime.ParseNamespace(value)
		if err != nil {
			return nil, err
		}

		namespaces = append(namespaces, namespace)
	}

	return namespaces, nil
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}

	return items
}
