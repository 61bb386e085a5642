package transport

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Rogue-Bear-Innovations/notely-back/internal/db"
	"github.com/Rogue-Bear-Innovations/notely-back/internal/repository"
	"github.com/Rogue-Bear-Innovations/notely-back/internal/service"
)

func (s *HTTPServer) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"ok": true})
}

func (s *HTTPServer) Ready(c *fiber.Ctx) error {
	if err := s.pingDB(c.UserContext()); err != nil {
		s.logger.Warnw("readiness check failed", "error", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"ok": false})
	}
	return c.JSON(fiber.Map{"ok": true})
}

func (s *HTTPServer) Register(c *fiber.Ctx) error {
	s.logger.Debugw("register request", "body", string(censorBody(c.Body())))

	req := AuthReq{}
	if err := s.BindAndValidate(c, &req); err != nil {
		return err
	}

	user, _, err := s.auth.Register(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(UserResp{
		ID:    user.ID,
		Email: user.Email,
	})
}

func (s *HTTPServer) Login(c *fiber.Ctx) error {
	s.logger.Debugw("login request", "body", string(censorBody(c.Body())))

	req := AuthReq{}
	if err := s.BindAndValidate(c, &req); err != nil {
		return err
	}

	token, user, err := s.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(LoginResp{
		Token: token,
		Email: user.Email,
	})
}

func (s *HTTPServer) Logout(c *fiber.Ctx) error {
	token, _ := c.Locals(localToken).(string)
	if err := s.auth.Logout(c.UserContext(), token); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ok": true})
}

func (s *HTTPServer) Me(c *fiber.Ctx) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}
	return c.JSON(UserResp{
		ID:    user.ID,
		Email: user.Email,
	})
}

func (s *HTTPServer) TopicList(c *fiber.Ctx) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	topics, err := s.board.ListTopics(c.UserContext(), user)
	if err != nil {
		return err
	}

	resp := make([]TopicResp, len(topics))
	for i := range topics {
		resp[i] = toTopicResp(&topics[i])
	}
	return c.JSON(resp)
}

func (s *HTTPServer) TopicCreate(c *fiber.Ctx) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	req := TopicReq{}
	if err := s.BindAndValidate(c, &req); err != nil {
		return err
	}

	topic, err := s.board.CreateTopic(c.UserContext(), user, req.Name)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(toTopicResp(topic))
}

func (s *HTTPServer) TopicUpdate(c *fiber.Ctx) error {
	id, err := GetAndParseQuery(c, "id")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	req := TopicReq{}
	if err := s.BindAndValidate(c, &req); err != nil {
		return err
	}

	topic, err := s.board.RenameTopic(c.UserContext(), user, id, req.Name)
	if err != nil {
		return err
	}
	return c.JSON(toTopicResp(topic))
}

func (s *HTTPServer) TopicDelete(c *fiber.Ctx) error {
	id, err := GetAndParseQuery(c, "id")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	if err := s.board.DeleteTopic(c.UserContext(), user, id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ok": true})
}

func (s *HTTPServer) TopicJoin(c *fiber.Ctx) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	req := JoinReq{}
	if err := s.BindAndValidate(c, &req); err != nil {
		return err
	}

	topic, err := s.board.JoinTopic(c.UserContext(), user, req.Code)
	if err != nil {
		return err
	}
	return c.JSON(toTopicResp(topic))
}

func (s *HTTPServer) NoteList(c *fiber.Ctx) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	notes, err := s.board.ListNotes(c.UserContext(), user)
	if err != nil {
		return err
	}

	resp := make([]NoteResp, len(notes))
	for i := range notes {
		resp[i] = toNoteResp(&notes[i])
	}
	return c.JSON(resp)
}

func (s *HTTPServer) NoteCreate(c *fiber.Ctx) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	req := NoteCreateReq{}
	if err := s.BindAndValidate(c, &req); err != nil {
		return err
	}

	note, err := s.board.CreateNote(c.UserContext(), user, service.NoteInput{
		Title:   req.Title,
		Content: req.Content,
		Color:   req.Color,
		X:       req.X,
		Y:       req.Y,
		Width:   req.Width,
		Height:  req.Height,
		TopicID: req.TopicID,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(toNoteResp(note))
}

func (s *HTTPServer) NoteUpdate(c *fiber.Ctx) error {
	id, err := GetAndParseQuery(c, "id")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	req := NoteUpdateReq{}
	if err := s.BindAndValidate(c, &req); err != nil {
		return err
	}

	note, err := s.board.UpdateNote(c.UserContext(), user, id, service.NotePatch{
		Title:   req.Title,
		Content: req.Content,
		Color:   req.Color,
		X:       req.X,
		Y:       req.Y,
		Width:   req.Width,
		Height:  req.Height,
	})
	if err != nil {
		return err
	}
	return c.JSON(toNoteResp(note))
}

func (s *HTTPServer) NoteDelete(c *fiber.Ctx) error {
	id, err := GetAndParseQuery(c, "id")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	if err := s.board.DeleteNote(c.UserContext(), user, id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ok": true})
}

func toTopicResp(t *repository.TopicView) TopicResp {
	members := t.Members
	if members == nil {
		members = []uint64{}
	}
	return TopicResp{
		ID:        t.ID,
		Name:      t.Name,
		OwnerID:   t.OwnerID,
		ShareCode: t.ShareCode,
		Members:   members,
	}
}

func toNoteResp(n *db.Note) NoteResp {
	return NoteResp{
		ID:        n.ID,
		Title:     n.Title,
		Content:   n.Content,
		Color:     n.Color,
		X:         n.X,
		Y:         n.Y,
		Width:     n.Width,
		Height:    n.Height,
		OwnerID:   n.OwnerID,
		TopicID:   n.TopicID,
		CreatedAt: n.CreatedAt,
	}
}
