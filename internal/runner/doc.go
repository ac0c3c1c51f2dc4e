// Package runner — долгоживущий сервис выполнения workflow.
//
// Runner потребляет графы из очереди workflows.submitted, выполняет их
// через executor, архивирует отчёты (repo.ReportRepo) и публикует их
// в workflows.completed.
//
//	r := runner.New(runner.Config{
//	    Workflows: exec,
//	    Store:     repo.NewReportRepo(pool),
//	    Publisher: mq.NewPublisher(conn, logger),
//	    Conn:      conn,
//	    Logger:    logger,
//	})
//
//	if err := r.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Stop()
//
// Битый payload сообщения уходит в DLQ. Граф, который не разбирается
// или не проходит валидацию, всё равно получает отчёт failed.
package runner
