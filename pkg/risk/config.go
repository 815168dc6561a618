package risk

import "github.com/spf13/viper"

// LoadPolicy reads a policy table from a YAML file and the environment.
//
// Expected layout:
//
//	approve_from: medium
//	destructive: [wipe, purge]
//	read_only: [preview]
//	operations:
//	  delete_all:
//	    level: high
//	  create_draft_order:
//	    level: low
//	    requires_approval: false
func LoadPolicy(path string) (Policy, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("holdpoint")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return Policy{}, err
	}

	var policy Policy
	if err := v.Unmarshal(&policy); err != nil {
		return Policy{}, err
	}
	return policy, nil
}
