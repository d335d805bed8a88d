package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/SaiNageswarS/NurixLearn/internal/xjson"
	"github.com/SaiNageswarS/NurixLearn/pkg/catalog"
	"github.com/SaiNageswarS/NurixLearn/pkg/log"
	"github.com/SaiNageswarS/NurixLearn/pkg/models"
	cli "github.com/urfave/cli/v3"
)

func gradeCommand() *cli.Command {
	return &cli.Command{
		Name:  "grade",
		Usage: "Grade one attempt in-process and print the JSON result",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "socket-id", Usage: "Session identifier", Required: true},
			&cli.StringFlag{Name: "question-url", Usage: "Question image URL", Required: true},
			&cli.StringFlag{Name: "solution-url", Usage: "Solution image URL", Required: true},
			&cli.StringFlag{Name: "bounding-box", Usage: "Region as minX,maxX,minY,maxY", Required: true},
			&cli.StringFlag{Name: "user-id", Usage: "Optional user identifier"},
			&cli.StringFlag{Name: "attempt-id", Usage: "Optional question attempt identifier"},
		},
		Action: runGrade,
	}
}

func runGrade(ctx context.Context, command *cli.Command) error {
	logger := log.WithModule("grade")

	region, err := parseBoundingBox(command.String("bounding-box"))
	if err != nil {
		return err
	}

	rt, err := newRuntime(ctx, command, logger)
	if err != nil {
		return err
	}
	defer rt.close(context.WithoutCancel(ctx))

	resp, err := rt.evaluation.Grade(ctx, catalog.GradeInput{
		SocketID:    command.String("socket-id"),
		UserID:      command.String("user-id"),
		AttemptID:   command.String("attempt-id"),
		QuestionURL: command.String("question-url"),
		SolutionURL: command.String("solution-url"),
		Region:      &region,
	})
	if err != nil {
		return err
	}

	out, err := xjson.Marshal(resp)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(command.Root().Writer, string(out))

	return err
}

func parseBoundingBox(s string) (models.BoundingBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return models.BoundingBox{}, fmt.Errorf("bounding box %q must be minX,maxX,minY,maxY", s)
	}

	var v [4]float64

	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return models.BoundingBox{}, fmt.Errorf("bounding box %q: %w", s, err)
		}

		v[i] = f
	}

	box := models.BoundingBox{MinX: v[0], MaxX: v[1], MinY: v[2], MaxY: v[3]}

	return box, box.Validate()
}
