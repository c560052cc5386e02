package cmd

import (
	"github.com/flanksource/clicky"
	"github.com/flanksource/fxinstall/pkg/state"
)

type StatusOptions struct {
	Channels []string `json:"channels,omitempty" arg:"positional"`
}

// StatusList represents the install records for table display
type StatusList struct {
	Installs []state.Record `json:"installs" pretty:"table"`
}

func init() {
	clicky.AddCommand(rootCmd, StatusOptions{}, func(opts StatusOptions) (any, error) {
		return GetStatus(opts)
	})
}

// GetStatus lists the install records under the install root, optionally limited to some channels
func GetStatus(opts StatusOptions) (StatusList, error) {
	records, err := state.List(GetConfig().InstallRoot)
	if err != nil {
		return StatusList{}, err
	}
	if len(opts.Channels) == 0 {
		return StatusList{Installs: records}, nil
	}

	reqs, err := requests(opts.Channels)
	if err != nil {
		return StatusList{}, err
	}
	var list StatusList
	for _, r := range records {
		for _, req := range reqs {
			if r.Channel == req.Channel {
				list.Installs = append(list.Installs, r)
				break
			}
		}
	}
	return list, nil
}
