package conf

import (
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/DevRickLin/feishu-autoreply-bot/internal/biz/domain"
)

// ResponsesConfig holds the canned reply strings loaded from YAML
type ResponsesConfig struct {
	Greetings []string `yaml:"greetings"`
	Thanks    []string `yaml:"thanks"`
	Help      []string `yaml:"help"`
	Farewell  []string `yaml:"farewell"`
	Unknown   []string `yaml:"unknown"`

	GreetingPrefixes GreetingPrefixesConfig `yaml:"greeting_prefixes"`
	Fixed            FixedRepliesConfig     `yaml:"fixed"`
}

// GreetingPrefixesConfig contains the time-of-day greeting prefixes
type GreetingPrefixesConfig struct {
	Morning   string `yaml:"morning"`
	Afternoon string `yaml:"afternoon"`
	Evening   string `yaml:"evening"`
	Night     string `yaml:"night"`
}

// FixedRepliesConfig contains the single-string smart replies.
// Time and Date use {time} and {date} placeholders.
type FixedRepliesConfig struct {
	Question string `yaml:"question"`
	Time     string `yaml:"time"`
	Date     string `yaml:"date"`
	Identity string `yaml:"identity"`
}

// LoadResponsesConfig loads the response table from a YAML file.
// Without an explicit path a few well-known locations are tried; when none
// exists the built-in defaults are returned.
func LoadResponsesConfig(configPath string) (*ResponsesConfig, error) {
	paths := []string{configPath}
	if configPath == "" {
		paths = []string{
			"configs/responses.yaml",
			"/etc/feishu-autoreply-bot/responses.yaml",
		}
		if execPath, err := os.Executable(); err == nil {
			paths = append(paths, filepath.Join(filepath.Dir(execPath), "configs", "responses.yaml"))
		}
	}

	var data []byte
	var loadedPath string
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err == nil {
			data, loadedPath = b, p
			break
		}
	}

	if data == nil {
		if configPath != "" {
			return nil, fmt.Errorf("failed to read responses config %s", configPath)
		}
		log.Info("[Config] No responses.yaml found, using defaults")
		return DefaultResponsesConfig(), nil
	}

	log.Infof("[Config] Loading responses from: %s", loadedPath)

	var config ResponsesConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", loadedPath, err)
	}
	config.fillDefaults()
	return &config, nil
}

// fillDefaults fills in default values for empty fields
func (c *ResponsesConfig) fillDefaults() {
	defaults := DefaultResponsesConfig()

	fillList := func(dst *[]string, def []string) {
		if len(*dst) == 0 {
			*dst = def
		}
	}
	fillString := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}

	fillList(&c.Greetings, defaults.Greetings)
	fillList(&c.Thanks, defaults.Thanks)
	fillList(&c.Help, defaults.Help)
	fillList(&c.Farewell, defaults.Farewell)
	fillList(&c.Unknown, defaults.Unknown)

	fillString(&c.GreetingPrefixes.Morning, defaults.GreetingPrefixes.Morning)
	fillString(&c.GreetingPrefixes.Afternoon, defaults.GreetingPrefixes.Afternoon)
	fillString(&c.GreetingPrefixes.Evening, defaults.GreetingPrefixes.Evening)
	fillString(&c.GreetingPrefixes.Night, defaults.GreetingPrefixes.Night)

	fillString(&c.Fixed.Question, defaults.Fixed.Question)
	fillString(&c.Fixed.Time, defaults.Fixed.Time)
	fillString(&c.Fixed.Date, defaults.Fixed.Date)
	fillString(&c.Fixed.Identity, defaults.Fixed.Identity)
}

// ToResponseTable converts to the immutable domain table
func (c *ResponsesConfig) ToResponseTable() *domain.ResponseTable {
	copyList := func(in []string) []string {
		return append([]string(nil), in...)
	}

	return &domain.ResponseTable{
		Categories: map[domain.Category][]string{
			domain.CategoryGreetings: copyList(c.Greetings),
			domain.CategoryThanks:    copyList(c.Thanks),
			domain.CategoryHelp:      copyList(c.Help),
			domain.CategoryFarewell:  copyList(c.Farewell),
			domain.CategoryUnknown:   copyList(c.Unknown),
		},
		Prefixes: domain.GreetingPrefixes{
			Morning:   c.GreetingPrefixes.Morning,
			Afternoon: c.GreetingPrefixes.Afternoon,
			Evening:   c.GreetingPrefixes.Evening,
			Night:     c.GreetingPrefixes.Night,
		},
		QuestionAck:  c.Fixed.Question,
		TimeTemplate: c.Fixed.Time,
		DateTemplate: c.Fixed.Date,
		Identity:     c.Fixed.Identity,
	}
}

// DefaultResponsesConfig returns the built-in response table
func DefaultResponsesConfig() *ResponsesConfig {
	return &ResponsesConfig{
		Greetings: []string{
			"नमस्ते! मैं कैसे आपकी मदद कर सकता हूं? 😊",
			"हैलो! कैसे हैं आप?",
			"सुप्रभात! 🌅",
			"शुभ संध्या! 🌇",
		},
		Thanks: []string{
			"आपका स्वागत है! 🙏",
			"कोई बात नहीं! 😊",
			"खुशी हुई मदद करके! 👍",
		},
		Help: []string{
			"मैं आपकी क्या मदद कर सकता हूं?",
			"बताइए, मैं कैसे आपकी मदद करूं?",
			"किस चीज में मदद चाहिए?",
		},
		Farewell: []string{
			"अलविदा! फिर मिलेंगे 👋",
			"खुश रहिए! 😊",
			"मिलते रहिएगा! 🙏",
		},
		Unknown: []string{
			"माफ करना, मैं समझ नहीं पाया।",
			"क्या आप दोबारा कह सकते हैं?",
			"मैं अभी इसका जवाब नहीं जानता।",
			"कृपया कुछ और पूछें।",
		},
		GreetingPrefixes: GreetingPrefixesConfig{
			Morning:   "शुभ प्रभात! ",
			Afternoon: "नमस्ते! ",
			Evening:   "शुभ संध्या! ",
			Night:     "शुभ रात्रि! ",
		},
		Fixed: FixedRepliesConfig{
			Question: "यह एक अच्छा सवाल है! मैं इसके बारे में सोचता हूं... 🤔",
			Time:     "अभी समय है: {time} ⏰",
			Date:     "आज की तारीख: {date} 📅",
			Identity: "मैं एक स्मार्ट ऑटो-रिप्लाई बॉट हूं! 🤖",
		},
	}
}
