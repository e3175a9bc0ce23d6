package mapstruct

import (
	"github.com/go-viper/mapstructure/v2"
)

// Decode maps input onto output using the json tags, with weak type
// conversion so environment strings land in bool/int/duration fields.
func Decode(input any, output any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Metadata:         nil,
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		Result:           output,
	})
	if err != nil {
		return err
	}

	return decoder.Decode(input)
}
