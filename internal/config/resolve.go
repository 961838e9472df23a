package config

// Targets expands ssh.environments into one ResolvedTarget per
// (environment, host) pair, applying the per-environment overrides
// over the SSH-level defaults as spec.md §4.4 describes: "per-
// environment values override the SSH-level defaults; if both are
// absent, the field is unset."
func (s SSH) Targets() []ResolvedTarget {
	targets := make([]ResolvedTarget, 0)

	for name, env := range s.Environments {
		for _, host := range env.Hosts {
			targets = append(targets, ResolvedTarget{
				Environment:    name,
				Host:           host,
				File:           firstNonEmpty(env.File, s.File),
				User:           firstNonEmpty(env.User, s.User),
				Password:       firstNonEmpty(env.Password, s.Password),
				PrivateKey:     firstNonEmpty(env.PrivateKey, s.PrivateKey),
				ConnectTimeout: firstPositive(env.ConnectTimeout, s.ConnectTimeout),
			})
		}
	}

	return targets
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}

	return ""
}

func firstPositive(vals ...int) int {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}

	return 0
}
