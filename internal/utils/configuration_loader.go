package utils

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	environmentKeySeparatorOldConstant              = "."
	environmentKeySeparatorNewConstant              = "_"
	listSeparatorConstant                           = ","
	configurationReadErrorTemplateConstant          = "failed to read configuration: %w"
	configurationUnmarshalErrorTemplateConstant     = "failed to parse configuration: %w"
	embeddedConfigurationMergeErrorTemplateConstant = "failed to merge embedded configuration: %w"
	environmentFileLoadErrorTemplateConstant        = "failed to load environment file %s: %w"
)

// ConfigurationLoader wraps Viper to load structured configuration files and environment overrides.
type ConfigurationLoader struct {
	configurationName         string
	configurationType         string
	environmentPrefix         string
	searchPaths               []string
	environmentKeyReplacer    *strings.Replacer
	embeddedConfiguration     []byte
	embeddedConfigurationType string
	environmentFilePaths      []string
}

// LoadedConfiguration surfaces metadata about the resolved configuration.
type LoadedConfiguration struct {
	ConfigFileUsed string
}

// NewConfigurationLoader creates a loader that searches known paths and respects an environment prefix.
// An empty configurationType lets the file extension decide between YAML, TOML and JSON.
func NewConfigurationLoader(configurationName string, configurationType string, environmentPrefix string, searchPaths []string) *ConfigurationLoader {
	duplicatedSearchPaths := make([]string, len(searchPaths))
	copy(duplicatedSearchPaths, searchPaths)

	return &ConfigurationLoader{
		configurationName:      configurationName,
		configurationType:      configurationType,
		environmentPrefix:      environmentPrefix,
		searchPaths:            duplicatedSearchPaths,
		environmentKeyReplacer: strings.NewReplacer(environmentKeySeparatorOldConstant, environmentKeySeparatorNewConstant),
	}
}

// SetEmbeddedConfiguration stores embedded configuration data merged before user-provided configuration files.
func (loader *ConfigurationLoader) SetEmbeddedConfiguration(configurationData []byte, configurationType string) {
	if loader == nil {
		return
	}

	loader.embeddedConfiguration = nil
	loader.embeddedConfigurationType = strings.TrimSpace(configurationType)

	if len(configurationData) == 0 {
		return
	}

	duplicatedData := make([]byte, len(configurationData))
	copy(duplicatedData, configurationData)
	loader.embeddedConfiguration = duplicatedData
}

// SetEnvironmentFiles registers dotenv files whose assignments are loaded into the
// process environment before environment overrides are resolved. Variables that are
// already set keep their values.
func (loader *ConfigurationLoader) SetEnvironmentFiles(environmentFilePaths ...string) {
	if loader == nil {
		return
	}

	loader.environmentFilePaths = loader.environmentFilePaths[:0]
	for _, environmentFilePath := range environmentFilePaths {
		trimmedPath := strings.TrimSpace(environmentFilePath)
		if len(trimmedPath) > 0 {
			loader.environmentFilePaths = append(loader.environmentFilePaths, trimmedPath)
		}
	}
}

// LoadConfiguration populates targetConfiguration using configuration files, defaults, and environment variables.
func (loader *ConfigurationLoader) LoadConfiguration(configurationFilePath string, defaultValues map[string]any, targetConfiguration any) (LoadedConfiguration, error) {
	for _, environmentFilePath := range loader.environmentFilePaths {
		if loadError := godotenv.Load(environmentFilePath); loadError != nil {
			return LoadedConfiguration{}, fmt.Errorf(environmentFileLoadErrorTemplateConstant, environmentFilePath, loadError)
		}
	}

	viperInstance := viper.New()
	viperInstance.SetConfigName(loader.configurationName)
	if len(loader.configurationType) > 0 {
		viperInstance.SetConfigType(loader.configurationType)
	}

	if len(loader.embeddedConfiguration) > 0 {
		embeddedSettings, embeddedError := loader.readEmbeddedConfiguration()
		if embeddedError != nil {
			return LoadedConfiguration{}, fmt.Errorf(embeddedConfigurationMergeErrorTemplateConstant, embeddedError)
		}
		if mergeError := viperInstance.MergeConfigMap(embeddedSettings); mergeError != nil {
			return LoadedConfiguration{}, fmt.Errorf(embeddedConfigurationMergeErrorTemplateConstant, mergeError)
		}
	}

	for _, searchPath := range loader.searchPaths {
		viperInstance.AddConfigPath(searchPath)
	}

	viperInstance.SetEnvPrefix(loader.environmentPrefix)
	if loader.environmentKeyReplacer != nil {
		viperInstance.SetEnvKeyReplacer(loader.environmentKeyReplacer)
	}
	viperInstance.AutomaticEnv()

	for defaultKey, defaultValue := range defaultValues {
		viperInstance.SetDefault(defaultKey, defaultValue)
	}

	if len(configurationFilePath) > 0 {
		viperInstance.SetConfigFile(configurationFilePath)
	}

	readError := viperInstance.MergeInConfig()
	if readError != nil {
		var notFoundError viper.ConfigFileNotFoundError
		if !errors.As(readError, &notFoundError) {
			return LoadedConfiguration{}, fmt.Errorf(configurationReadErrorTemplateConstant, readError)
		}
	}

	unmarshalError := viperInstance.Unmarshal(targetConfiguration, viper.DecodeHook(configurationDecodeHook()))
	if unmarshalError != nil {
		return LoadedConfiguration{}, fmt.Errorf(configurationUnmarshalErrorTemplateConstant, unmarshalError)
	}

	loadedConfiguration := LoadedConfiguration{
		ConfigFileUsed: viperInstance.ConfigFileUsed(),
	}

	return loadedConfiguration, nil
}

func (loader *ConfigurationLoader) readEmbeddedConfiguration() (map[string]any, error) {
	configurationType := loader.embeddedConfigurationType
	if len(configurationType) == 0 {
		configurationType = loader.configurationType
	}

	embeddedInstance := viper.New()
	embeddedInstance.SetConfigType(configurationType)
	if readError := embeddedInstance.ReadConfig(bytes.NewReader(loader.embeddedConfiguration)); readError != nil {
		return nil, readError
	}
	return embeddedInstance.AllSettings(), nil
}

// configurationDecodeHook extends the Viper defaults so that list values supplied
// through environment variables are split on commas with surrounding blanks removed.
func configurationDecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(listSeparatorConstant),
		trimStringSliceHook,
	)
}

func trimStringSliceHook(sourceType reflect.Type, targetType reflect.Type, data any) (any, error) {
	if targetType != reflect.TypeOf([]string{}) {
		return data, nil
	}
	if sourceType != reflect.TypeOf([]string{}) {
		return data, nil
	}

	trimmedValues := make([]string, 0, len(data.([]string)))
	for _, value := range data.([]string) {
		trimmedValue := strings.TrimSpace(value)
		if len(trimmedValue) > 0 {
			trimmedValues = append(trimmedValues, trimmedValue)
		}
	}
	return trimmedValues, nil
}
