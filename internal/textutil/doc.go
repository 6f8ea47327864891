// Package textutil holds small string helpers shared by capture and CLI output.
package textutil
