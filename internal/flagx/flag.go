// Package flagx layers configuration sources for storyqueue commands.
//
// Precedence, lowest first:
//
//  1. Built-in defaults (the struct passed to Load, as filled by LoadDefaults).
//  2. Optional config file (JSON, YAML or TOML, chosen by extension).
//  3. Environment, after loading any .env files that exist. Variables are
//     named PREFIX_KEY, e.g. STORYQUEUE_API_URL.
//  4. Command-line flags that were explicitly set. A flag named "api-url"
//     maps to the key "api_url".
//
// Keys are the `mapstructure` tags of the target struct.
package flagx

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Source lists where a command reads its settings from.
type Source struct {
	EnvPrefix  string
	ConfigFile string
	EnvFiles   []string
	Flags      *pflag.FlagSet
}

// Load overlays the configured sources onto out, which must be a pointer to
// a struct already holding its defaults.
func Load(src Source, out any) error {
	v := viper.New()

	keys, err := setDefaults(v, out)
	if err != nil {
		return err
	}

	if src.ConfigFile != "" {
		v.SetConfigFile(src.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", src.ConfigFile, err)
		}
	}

	if err := loadEnvFiles(src.EnvFiles); err != nil {
		return err
	}
	if src.EnvPrefix != "" {
		v.SetEnvPrefix(src.EnvPrefix)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if src.Flags != nil {
		var bindErr error
		src.Flags.VisitAll(func(f *pflag.Flag) {
			key := FlagKey(f.Name)
			if _, ok := keys[key]; !ok || bindErr != nil {
				return
			}
			bindErr = v.BindPFlag(key, f)
		})
		if bindErr != nil {
			return fmt.Errorf("bind flags: %w", bindErr)
		}
	}

	if err := v.Unmarshal(out); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// FlagKey converts a flag name to its config key.
func FlagKey(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}

func loadEnvFiles(files []string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// setDefaults registers every tagged field of out as a viper default, so
// that environment variables are honoured for keys absent from the file.
func setDefaults(v *viper.Viper, out any) (map[string]struct{}, error) {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("config target must be a pointer to struct, got %T", out)
	}
	rv = rv.Elem()
	rt := rv.Type()

	keys := make(map[string]struct{}, rt.NumField())
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		tag := strings.Split(f.Tag.Get("mapstructure"), ",")[0]
		if tag == "" || tag == "-" || !f.IsExported() {
			continue
		}
		v.SetDefault(tag, rv.Field(i).Interface())
		keys[tag] = struct{}{}
	}
	return keys, nil
}
