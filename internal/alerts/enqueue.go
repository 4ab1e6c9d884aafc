package alerts

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hibiken/asynq"
)

// ensureClient returns a usable client instance
func ensureClient() *asynq.Client {
	if client == nil {
		Init()
	}
	return client
}

// EnqueueWelcomeEmail schedules a welcome email to the user
func EnqueueWelcomeEmail(userID, email, name string) error {
	base := os.Getenv("APP_URL")
	if base == "" {
		base = "http://localhost:3000"
	}
	base = strings.TrimRight(base, "/")

	subject := fmt.Sprintf("Welcome to UniTask, %s!", name)
	body := fmt.Sprintf("Hi %s, thanks for joining UniTask.\n\nOpen UniTask: %s\n\nPost a task or browse open tasks from other students to get started.", name, base)

	env := EmailEnvelope{To: email, Subject: subject, Body: body}
	payload := WelcomeEmailPayload{UserID: userID, Name: name, Email: email, Envelope: env, SentAt: time.Now()}
	b, _ := json.Marshal(payload)
	task := asynq.NewTask(TaskWelcomeEmail, b)
	_, err := ensureClient().Enqueue(task, asynq.Queue("emails"))
	return err
}

// messagePreview shortens a message body for the email, cutting on a
// rune boundary so multi-byte characters survive intact.
func messagePreview(content string) string {
	r := []rune(content)
	if len(r) <= 120 {
		return content
	}
	return string(r[:120]) + "..."
}

// EnqueueMessageNew notifies the other participant about a new message
func EnqueueMessageNew(taskID, senderID, recipientEmail, recipientID, content string) error {
	preview := messagePreview(content)
	env := EmailEnvelope{
		To:      recipientEmail,
		Subject: "New message on your task",
		Body:    fmt.Sprintf("You have a new message on task %s:\n\n%s", taskID, preview),
	}
	payload := MessageNewPayload{TaskID: taskID, SenderID: senderID, Recipient: recipientID, Email: recipientEmail, Body: content, Envelope: env, SentAt: time.Now()}
	b, _ := json.Marshal(payload)
	task := asynq.NewTask(TaskMessageNew, b)
	_, err := ensureClient().Enqueue(task, asynq.Queue("emails"))
	return err
}

// EnqueueTaskCompleted notifies the assignee that the task was completed and paid
func EnqueueTaskCompleted(taskID, title, assigneeID, assigneeEmail string, price int64) error {
	env := EmailEnvelope{
		To:      assigneeEmail,
		Subject: "Task completed and paid",
		Body:    fmt.Sprintf("Task \"%s\" is completed. %d has been added to your earnings.", title, price),
	}
	payload := TaskCompletedPayload{TaskID: taskID, Title: title, AssigneeID: assigneeID, Email: assigneeEmail, Price: price, Envelope: env, SentAt: time.Now()}
	b, _ := json.Marshal(payload)
	task := asynq.NewTask(TaskTaskCompleted, b)
	_, err := ensureClient().Enqueue(task, asynq.Queue("emails"))
	return err
}

// EnqueueAdminAlert sends an alert to admins
func EnqueueAdminAlert(actorID, severity, message string) error {
	to := os.Getenv("ADMIN_ALERT_EMAIL")
	if to == "" {
		to = "admin@unitask.local"
	}
	env := EmailEnvelope{To: to, Subject: "Admin Alert", Body: message}
	payload := AdminAlertPayload{ActorID: actorID, Severity: severity, Message: message, Envelope: env, SentAt: time.Now()}
	b, _ := json.Marshal(payload)
	task := asynq.NewTask(TaskAdminAlert, b)
	_, err := ensureClient().Enqueue(task, asynq.Queue("alerts"))
	return err
}
