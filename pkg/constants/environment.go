// Copyright The RBAC Platform Authors.
// SPDX-License-Identifier: MIT

package constants

// Environment is the name of the platform environment the service runs in.
type Environment string

// Constants for the platform environment names.
const (
	// EnvironmentDev is the development environment.
	EnvironmentDev Environment = "dev"
	// EnvironmentStg is the staging environment.
	EnvironmentStg Environment = "stg"
	// EnvironmentProd is the production environment.
	EnvironmentProd Environment = "prod"
)

// ParseEnvironment parses the platform environment from a string.
func ParseEnvironment(env string) Environment {
	switch env {
	case "dev", "development":
		return EnvironmentDev
	case "stg", "stage", "staging":
		return EnvironmentStg
	case "prod", "production":
		return EnvironmentProd
	default:
		return EnvironmentDev
	}
}
