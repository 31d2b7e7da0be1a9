// Package utils contains small helpers shared by the SQL repositories.
package utils
