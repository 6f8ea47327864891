package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"fieldreport/internal/api"
	"fieldreport/internal/capture"
	"fieldreport/internal/config"
)

// maxPhotoBytes matches the photo limit enforced by the daemon API.
const maxPhotoBytes = 32 << 20

func newCaptureCommand(ctx *commandContext) *cobra.Command {
	var lat, lon float64
	var userID string

	cmd := &cobra.Command{
		Use:   "capture <photo>",
		Short: "Submit a photo report, queueing it when the server is unreachable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			data, err := readPhotoFile(path)
			if err != nil {
				return err
			}

			latSet := cmd.Flags().Changed("lat")
			lonSet := cmd.Flags().Changed("lon")
			if latSet != lonSet {
				return errors.New("--lat and --lon must be supplied together")
			}
			req := api.CaptureRequest{
				Photo:    data,
				Filename: filepath.Base(path),
				UserID:   strings.TrimSpace(userID),
			}
			if latSet {
				req.Latitude = &lat
				req.Longitude = &lon
			}

			resp, remote, err := submitCapture(cmd, ctx, cfg, req)
			if err != nil {
				return err
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, resp)
			}
			printCaptureResponse(cmd.OutOrStdout(), resp, remote)
			return nil
		},
	}
	cmd.Flags().Float64Var(&lat, "lat", 0, "Latitude in decimal degrees (overrides EXIF)")
	cmd.Flags().Float64Var(&lon, "lon", 0, "Longitude in decimal degrees (overrides EXIF)")
	cmd.Flags().StringVar(&userID, "user", "", "Reporting user id (defaults to upload.user_id)")
	return cmd
}

// submitCapture hands the photo to the daemon and falls back to an in-process
// session only when the daemon cannot be reached.
func submitCapture(cmd *cobra.Command, ctx *commandContext, cfg *config.Config, req api.CaptureRequest) (api.CaptureResponse, bool, error) {
	client, err := ctx.apiClient()
	if err != nil {
		return api.CaptureResponse{}, false, err
	}
	resp, err := client.Capture(cmd.Context(), req)
	if err == nil {
		return resp, true, nil
	}
	if !api.IsUnavailable(err) {
		if api.StatusCode(err) == http.StatusUnprocessableEntity {
			var statusErr *api.StatusError
			if errors.As(err, &statusErr) {
				return api.CaptureResponse{}, true, errors.New(statusErr.Message)
			}
		}
		return api.CaptureResponse{}, true, err
	}

	result, err := localCapture(cmd.Context(), cfg, ctx.localLogger(cfg), capture.Photo{
		Data:      req.Photo,
		Filename:  req.Filename,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		UserID:    req.UserID,
	})
	if err != nil {
		var failure *capture.Failure
		if errors.As(err, &failure) {
			return api.CaptureResponse{}, false, errors.New(failure.Message)
		}
		return api.CaptureResponse{}, false, err
	}
	return api.FromCaptureResult(result), false, nil
}

func readPhotoFile(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open photo: %w", err)
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxPhotoBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read photo: %w", err)
	}
	if len(data) > maxPhotoBytes {
		return nil, fmt.Errorf("photo %s exceeds %d bytes", filepath.Base(path), maxPhotoBytes)
	}
	return data, nil
}

func printCaptureResponse(out io.Writer, resp api.CaptureResponse, remote bool) {
	via := "locally"
	if remote {
		via = "via daemon"
	}
	switch resp.Status {
	case string(capture.StatusQueued):
		fmt.Fprintf(out, "Report %d queued %s: %s\n", resp.ReportID, via, resp.Message)
	default:
		fmt.Fprintf(out, "Report uploaded %s: %s\n", via, resp.Message)
	}
	if resp.Latitude != nil && resp.Longitude != nil {
		fmt.Fprintf(out, "Location: %s\n", formatLocation(resp.Latitude, resp.Longitude))
	}
	if resp.Resized {
		fmt.Fprintf(out, "Photo downscaled to %d bytes\n", resp.Size)
	}
}
