package advisorService

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/avoronin/dma_advisor_bot/utils"
)

// GenerateReport renders the xlsx portfolio report and uploads it to cloud
// storage, returning the download link.
func (s *AdvisorService) GenerateReport(ctx context.Context, chatID int64) (downloadLink string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "AdvisorService.GenerateReport"

	slog.Debug("GenerateReport start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	defer func() {
		slog.Debug("GenerateReport finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	}()

	report, err := s.buildReportData(ctx, chatID)
	if err != nil {
		return "", err
	}

	fileBytes, fileExtension, err := s.reportGen.Generate(ctx, report)
	if err != nil {
		slog.Error("got error from reportGen.Generate", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return "", err
	}

	filename := fmt.Sprintf("portfolio_%d_%s%s", chatID, report.GeneratedAt.Format("2006-01-02"), fileExtension)

	downloadLink, err = s.cloudStorage.UploadFile(ctx, bytes.NewReader(fileBytes), filename)
	if err != nil {
		slog.Error("got error from cloudStorage.UploadFile", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return "", err
	}

	return downloadLink, nil
}
