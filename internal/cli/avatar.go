package cli

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "upload-avatar",
		Short: "Upload an avatar image for a candidate",
		Run:   runUploadAvatar,
	}
	addTenantFlag(cmd)
	cmd.Flags().String("candidate", "", "Candidate ID")
	cmd.Flags().String("file", "", "Path to a PNG, JPEG or WebP image")
	_ = cmd.MarkFlagRequired("candidate")
	_ = cmd.MarkFlagRequired("file")
	RootCmd.AddCommand(cmd)
}

// avatarContentType prefers the file extension and falls back to sniffing.
func avatarContentType(path string, data []byte) string {
	if byExt := mime.TypeByExtension(filepath.Ext(path)); byExt != "" {
		return byExt
	}
	return http.DetectContentType(data)
}

func runUploadAvatar(cmd *cobra.Command, args []string) {
	candidateID, _ := cmd.Flags().GetString("candidate")
	path, _ := cmd.Flags().GetString("file")

	data, err := os.ReadFile(path)
	if err != nil {
		exitErr("read file", err)
	}

	ctx := cmd.Context()
	svc, pool, err := openService(ctx)
	if err != nil {
		exitErr("open service", err)
	}
	defer pool.Close()

	candidate, err := svc.SetAvatar(ctx, tenantID, candidateID, avatarContentType(path, data), data)
	if err != nil {
		exitErr("upload avatar", err)
	}
	fmt.Println(candidate.AvatarURL)
}
