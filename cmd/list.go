package cmd

import (
	"github.com/flanksource/clicky"
	"github.com/flanksource/fxinstall/pkg/catalog"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

// ChannelInfo represents one channel and its upstream tokens
type ChannelInfo struct {
	Channel   string `json:"channel" pretty:"label=Channel"`
	Directory string `json:"directory" pretty:"label=Directory"`
	Listing   string `json:"listing" pretty:"label=Listing"`
	Product   string `json:"product" pretty:"label=Product"`
	Layout    string `json:"layout" pretty:"label=Layout"`
}

// PlatformInfo represents one platform and its artifact format
type PlatformInfo struct {
	Platform  string `json:"platform" pretty:"label=Platform"`
	OS        string `json:"os" pretty:"label=OS"`
	Extension string `json:"extension" pretty:"label=Extension"`
	Install   string `json:"install" pretty:"label=Install"`
}

// Catalog represents every supported channel and platform for table display
type Catalog struct {
	Channels  []ChannelInfo  `json:"channels" pretty:"table"`
	Platforms []PlatformInfo `json:"platforms" pretty:"table"`
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the supported channels and platforms",
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

// GetCatalog describes the built-in channel and platform catalog
func GetCatalog() Catalog {
	channels := lo.FilterMap(catalog.Channels(), func(ch catalog.Channel, _ int) (ChannelInfo, bool) {
		desc, err := catalog.LookupChannel(ch)
		if err != nil {
			return ChannelInfo{}, false
		}
		return ChannelInfo{
			Channel:   string(ch),
			Directory: desc.Local,
			Listing:   desc.Listing,
			Product:   desc.Product,
			Layout:    lo.Ternary(desc.Flat, "flat", "per-platform"),
		}, true
	})

	platforms := lo.FilterMap(catalog.Platforms(), func(p catalog.Platform, _ int) (PlatformInfo, bool) {
		desc, err := catalog.LookupPlatform(p)
		if err != nil {
			return PlatformInfo{}, false
		}
		return PlatformInfo{
			Platform:  string(p),
			OS:        desc.Upstream,
			Extension: desc.Extension.String(),
			Install:   lo.Ternary(desc.Archive, "extract", "copy"),
		}, true
	})

	return Catalog{Channels: channels, Platforms: platforms}
}

func runList(cmd *cobra.Command, args []string) error {
	result, err := clicky.Format(GetCatalog())
	if err != nil {
		return err
	}

	cmd.Println(result)
	return nil
}
